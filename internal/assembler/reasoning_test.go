package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectorFencedAcrossEvents(t *testing.T) {
	var d Detector

	seg, ok := d.Feed("```text\nfoo")
	assert.True(t, ok)
	assert.Equal(t, Segment{Kind: SegmentReasoning, Text: "foo"}, seg)
	assert.Equal(t, ModeReasoning, d.Mode())

	seg, ok = d.Feed("bar```")
	assert.True(t, ok)
	assert.Equal(t, Segment{Kind: SegmentContent, Text: "bar"}, seg)
	assert.Equal(t, ModeNormal, d.Mode())
}

func TestDetectorSelfClosingFence(t *testing.T) {
	var d Detector

	seg, ok := d.Feed("```text\nfoo```")
	assert.True(t, ok)
	assert.Equal(t, Segment{Kind: SegmentContent, Text: "foo"}, seg)
	assert.Equal(t, ModeNormal, d.Mode())
}

func TestDetectorNoiseLeavesStateAlone(t *testing.T) {
	for _, start := range []string{"", "```text\nthinking"} {
		var d Detector
		if start != "" {
			d.Feed(start)
		}
		before := d.Mode()

		_, ok := d.Feed("Thinking...")
		assert.False(t, ok)
		assert.Equal(t, before, d.Mode())

		_, ok = d.Feed("still Thinking... (3s)")
		assert.False(t, ok)
		assert.Equal(t, before, d.Mode())
	}
}

func TestDetectorSequence(t *testing.T) {
	var d Detector
	events := []string{
		"plain ",
		"```text\nstep one\n",
		"step two\n",
		"  ",
		"done```  \n",
		"answer",
	}
	want := []Segment{
		{Kind: SegmentContent, Text: "plain "},
		{Kind: SegmentReasoning, Text: "step one\n"},
		{Kind: SegmentReasoning, Text: "step two\n"},
		{Kind: SegmentReasoning, Text: "  "},
		{Kind: SegmentContent, Text: "done"},
		{Kind: SegmentContent, Text: "answer"},
	}

	var got []Segment
	for _, e := range events {
		seg, ok := d.Feed(e)
		assert.True(t, ok)
		got = append(got, seg)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, "normal", d.Mode().String())
}

func TestDetectorFenceOnlyAtStart(t *testing.T) {
	var d Detector
	seg, ok := d.Feed("see ```text\nnot reasoning")
	assert.True(t, ok)
	assert.Equal(t, SegmentContent, seg.Kind)
	assert.Equal(t, ModeNormal, d.Mode())
}
