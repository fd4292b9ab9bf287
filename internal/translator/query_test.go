package translator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"poe-router/internal/models"
)

func TestBuildQueryWireShape(t *testing.T) {
	conv := Conversation{Messages: []models.BackendMessage{{
		Role:        "user",
		Content:     "hi",
		ContentType: "text/markdown",
		ImageURL:    "https://example.com/a.png",
	}}}

	query := BuildQuery(conv, 1.7, []models.Tool{})
	data, err := json.Marshal(query)
	require.NoError(t, err)
	body := gjson.ParseBytes(data)

	assert.Equal(t, "1.1", body.Get("version").String())
	assert.Equal(t, "query", body.Get("type").String())
	assert.Equal(t, 1.7, body.Get("temperature").Float(), "temperature is not clamped")
	assert.False(t, body.Get("skip_system_prompt").Bool())
	assert.True(t, body.Get("skip_system_prompt").Exists())
	assert.Equal(t, "<missing>", body.Get("api_key").String())
	assert.Equal(t, "en", body.Get("language_code").String())
	assert.JSONEq(t, `{}`, body.Get("logit_bias").Raw)
	assert.JSONEq(t, `[]`, body.Get("stop_sequences").Raw)
	assert.JSONEq(t, `[{"role":"user","content":"hi","content_type":"text/markdown"}]`, body.Get("query").Raw)

	assert.False(t, body.Get("tools").Exists())
	assert.False(t, body.Get("tool_calls").Exists())
	assert.False(t, body.Get("tool_results").Exists())
}

func TestBuildQueryCarriesTools(t *testing.T) {
	conv := Conversation{
		ToolCalls:   []models.ToolCall{{ID: "c1", Type: "function", Function: models.FunctionCall{Name: "f", Arguments: "{}"}}},
		ToolResults: []models.ToolResult{{Role: "tool", ToolCallID: "c1", Content: "42"}},
	}
	tools := []models.Tool{{Type: "function", Function: models.FunctionDefinition{Name: "f"}}}

	data, err := json.Marshal(BuildQuery(conv, 0.7, tools))
	require.NoError(t, err)
	body := gjson.ParseBytes(data)

	assert.JSONEq(t, `[]`, body.Get("query").Raw)
	assert.Equal(t, "f", body.Get("tools.0.function.name").String())
	assert.Equal(t, "c1", body.Get("tool_calls.0.id").String())
	assert.Equal(t, "42", body.Get("tool_results.0.content").String())
}

func TestBuildQueryAlwaysSendsNameAndDescription(t *testing.T) {
	conv := Conversation{ToolResults: []models.ToolResult{{Role: "tool", ToolCallID: "c1", Content: "42"}}}
	tools := []models.Tool{{Type: "function", Function: models.FunctionDefinition{Name: "f"}}}

	data, err := json.Marshal(BuildQuery(conv, 0.7, tools))
	require.NoError(t, err)
	body := gjson.ParseBytes(data)

	assert.True(t, body.Get("tool_results.0.name").Exists())
	assert.Equal(t, "", body.Get("tool_results.0.name").String())
	assert.True(t, body.Get("tools.0.function.description").Exists())
}
