package assembler

import (
	"strings"

	"github.com/tidwall/gjson"

	"poe-router/internal/models"
)

// ToolCallAccumulator reassembles fragmented function-call deltas into
// complete tool calls. A non-empty function name opens a new call and closes
// the previous one; ids and argument fragments attach to the open call.
// Missing or malformed fields read as empty strings.
type ToolCallAccumulator struct {
	names     []string
	ids       []string
	arguments []string
	pending   strings.Builder
	content   strings.Builder
	finished  bool
}

// Add consumes one structured backend delta.
func (a *ToolCallAccumulator) Add(data []byte) {
	delta := gjson.GetBytes(data, "choices.0.delta")
	call := delta.Get("tool_calls.0")

	if name := call.Get("function.name").String(); name != "" {
		if len(a.names) > 0 {
			a.flush()
		}
		a.names = append(a.names, name)
	}
	if id := call.Get("id").String(); id != "" {
		a.ids = append(a.ids, id)
	}
	a.pending.WriteString(call.Get("function.arguments").String())

	if content := delta.Get("content"); content.Exists() && content.Type != gjson.Null {
		a.content.WriteString(content.String())
	}
}

// AppendContent adds prose that arrived outside the structured deltas.
func (a *ToolCallAccumulator) AppendContent(text string) {
	a.content.WriteString(text)
}

// Content returns all prose collected so far.
func (a *ToolCallAccumulator) Content() string {
	return a.content.String()
}

// Len returns the number of calls opened so far.
func (a *ToolCallAccumulator) Len() int {
	return len(a.names)
}

// Finish closes the last open call and returns the ordered tool calls.
func (a *ToolCallAccumulator) Finish() []models.ToolCall {
	if !a.finished && len(a.names) > 0 {
		a.flush()
	}
	a.finished = true

	calls := make([]models.ToolCall, 0, len(a.names))
	for i, name := range a.names {
		calls = append(calls, models.ToolCall{
			ID:   at(a.ids, i),
			Type: "function",
			Function: models.FunctionCall{
				Name:      name,
				Arguments: at(a.arguments, i),
			},
		})
	}
	return calls
}

func (a *ToolCallAccumulator) flush() {
	a.arguments = append(a.arguments, a.pending.String())
	a.pending.Reset()
}

func at(list []string, i int) string {
	if i < len(list) {
		return list[i]
	}
	return ""
}
