package assembler

import (
	"strings"
	"unicode"
)

const (
	thinkingNoise = "Thinking..."
	fenceOpen     = "```text\n"
	fenceClose    = "```"
)

// Mode is the state of a Detector.
type Mode int

const (
	ModeNormal Mode = iota
	ModeReasoning
)

func (m Mode) String() string {
	if m == ModeReasoning {
		return "reasoning"
	}
	return "normal"
}

// SegmentKind tells which output field a Segment belongs to.
type SegmentKind int

const (
	SegmentContent SegmentKind = iota
	SegmentReasoning
)

// Segment is the classified form of one backend text event.
type Segment struct {
	Kind SegmentKind
	Text string
}

// IsNoise reports whether text is a backend keep-alive artifact.
func IsNoise(text string) bool {
	return strings.Contains(text, thinkingNoise)
}

// Detector splits fenced reasoning output from answer content. A reasoning
// segment opens with "```text\n" at the start of an event and closes with
// "```" at the end of a later (or the same) event. The zero value is ready
// to use and starts in ModeNormal.
type Detector struct {
	mode Mode
}

// Mode returns the current state.
func (d *Detector) Mode() Mode {
	return d.mode
}

// Feed classifies one text event. It returns false when the event is noise
// and must not be forwarded; the state is left untouched in that case.
func (d *Detector) Feed(text string) (Segment, bool) {
	if IsNoise(text) {
		return Segment{}, false
	}

	if d.mode == ModeNormal {
		rest, fenced := strings.CutPrefix(text, fenceOpen)
		if !fenced {
			return Segment{Kind: SegmentContent, Text: text}, true
		}
		trimmed := strings.TrimSpace(rest)
		if strings.HasSuffix(trimmed, fenceClose) {
			return Segment{Kind: SegmentContent, Text: strings.TrimSuffix(trimmed, fenceClose)}, true
		}
		d.mode = ModeReasoning
		return Segment{Kind: SegmentReasoning, Text: rest}, true
	}

	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if strings.HasSuffix(trimmed, fenceClose) {
		d.mode = ModeNormal
		return Segment{Kind: SegmentContent, Text: strings.TrimSuffix(trimmed, fenceClose)}, true
	}
	return Segment{Kind: SegmentReasoning, Text: text}, true
}
