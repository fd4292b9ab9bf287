// Package assembler turns an ordered sequence of backend partial events into
// unified chat-completion output, either as streamed chunks or as a single
// aggregated response.
package assembler

import (
	"encoding/json"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"poe-router/internal/models"
	"poe-router/internal/observability"
	"poe-router/internal/translator"
)

const (
	finishStop      = "stop"
	finishToolCalls = "tool_calls"
	roleAssistant   = "assistant"
)

// Frame is one outbound SSE payload: a unified chunk, a raw backend delta
// forwarded verbatim, or the terminal sentinel.
type Frame struct {
	Chunk *translator.ChatCompletionChunk
	Raw   json.RawMessage
	Done  bool
}

// Payload returns the bytes to place after "data: ".
func (f Frame) Payload() ([]byte, error) {
	switch {
	case f.Done:
		return []byte("[DONE]"), nil
	case f.Raw != nil:
		return f.Raw, nil
	default:
		return json.Marshal(f.Chunk)
	}
}

// Assembler converts the backend event stream of a single request. It keeps
// no state between calls; each Frames or Aggregate call owns its detector and
// accumulator.
type Assembler struct {
	ID      string
	Model   string
	Created int64
	Tools   []models.Tool
	Logger  *slog.Logger
}

// New returns an Assembler for one response to model.
func New(model string, tools []models.Tool) *Assembler {
	return &Assembler{
		ID:      "chatcmpl-" + uuid.NewString(),
		Model:   model,
		Created: time.Now().Unix(),
		Tools:   tools,
		Logger:  slog.Default(),
	}
}

func (a *Assembler) toolsActive() bool {
	return len(a.Tools) > 0
}

// Frames yields the streaming form of events in backend order. Structured
// deltas are forwarded untouched while tools are active. A backend error is
// yielded once and ends the sequence.
func (a *Assembler) Frames(events iter.Seq2[models.PartialEvent, error]) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		var (
			detector Detector
			calls    ToolCallAccumulator
			toolMode bool
		)

		for event, err := range events {
			if err != nil {
				yield(Frame{}, err)
				return
			}

			if data, ok := event.Data(); ok {
				if !a.toolsActive() {
					a.Logger.Debug("skipping structured event without declared tools", "model", a.Model)
					continue
				}
				toolMode = true
				calls.Add(data)
				if !yield(Frame{Raw: data}, nil) {
					return
				}
				continue
			}

			segment, ok := detector.Feed(event.Text())
			if !ok {
				continue
			}
			chunk := a.chunk(segment)
			if !yield(Frame{Chunk: &chunk}, nil) {
				return
			}
		}

		if toolMode {
			observability.ToolCallsTotal.WithLabelValues("stream").Add(float64(len(calls.Finish())))
			yield(Frame{Done: true}, nil)
			return
		}

		stop := finishStop
		final := translator.NewChunk(a.ID, a.Model, a.Created, translator.ChunkDelta{}, &stop)
		if !yield(Frame{Chunk: &final}, nil) {
			return
		}
		yield(Frame{Done: true}, nil)
	}
}

func (a *Assembler) chunk(segment Segment) translator.ChatCompletionChunk {
	text := segment.Text
	delta := translator.ChunkDelta{Role: roleAssistant}
	if segment.Kind == SegmentReasoning {
		delta.ReasoningContent = &text
	} else {
		delta.Content = &text
	}
	return translator.NewChunk(a.ID, a.Model, a.Created, delta, nil)
}

// Aggregate drains events and returns one response. It blocks until the
// backend stream is exhausted.
func (a *Assembler) Aggregate(events iter.Seq2[models.PartialEvent, error]) (*translator.ChatCompletionResponse, error) {
	var (
		calls    ToolCallAccumulator
		toolMode bool
	)

	for event, err := range events {
		if err != nil {
			return nil, err
		}
		if data, ok := event.Data(); ok {
			if !a.toolsActive() {
				a.Logger.Debug("skipping structured event without declared tools", "model", a.Model)
				continue
			}
			toolMode = true
			calls.Add(data)
			continue
		}
		if IsNoise(event.Text()) {
			continue
		}
		calls.AppendContent(event.Text())
	}

	content := calls.Content()
	if !toolMode {
		resp := translator.NewResponse(a.ID, a.Model, a.Created, translator.ResponseMessage{
			Role:    roleAssistant,
			Content: &content,
		}, finishStop)
		return &resp, nil
	}

	toolCalls := calls.Finish()
	observability.ToolCallsTotal.WithLabelValues("aggregate").Add(float64(len(toolCalls)))
	a.Logger.Debug("reassembled tool calls", "model", a.Model, "count", len(toolCalls))

	msg := translator.ResponseMessage{Role: roleAssistant, ToolCalls: toolCalls}
	if content != "" {
		msg.Content = &content
	}
	resp := translator.NewResponse(a.ID, a.Model, a.Created, msg, finishToolCalls)
	return &resp, nil
}
