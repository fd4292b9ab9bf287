package translator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"poe-router/internal/models"
)

var (
	errEmptyMessages  = errors.New("messages is required")
	errInvalidContent = errors.New("invalid message content")
	errInvalidTools   = errors.New("invalid tool declaration")
)

// ChatCompletionRequest models the OpenAI chat/completions request payload.
type ChatCompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	Stream      bool
	Temperature *float64
	Tools       []models.Tool
	Functions   []models.FunctionDefinition
	User        string
}

// UnmarshalJSON implements custom parsing to enforce validation.
func (r *ChatCompletionRequest) UnmarshalJSON(data []byte) error {
	type alias struct {
		Model       string                      `json:"model"`
		Messages    []ChatMessage               `json:"messages"`
		Stream      bool                        `json:"stream"`
		Temperature *float64                    `json:"temperature"`
		Tools       []models.Tool               `json:"tools"`
		Functions   []models.FunctionDefinition `json:"functions"`
		User        string                      `json:"user"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode chat request: %w", err)
	}

	r.Model = strings.TrimSpace(raw.Model)
	r.Messages = raw.Messages
	r.Stream = raw.Stream
	r.Temperature = raw.Temperature
	r.Tools = raw.Tools
	r.Functions = raw.Functions
	r.User = raw.User

	return r.validate()
}

func (r *ChatCompletionRequest) validate() error {
	if len(r.Messages) == 0 {
		return errEmptyMessages
	}
	for i, tool := range r.Tools {
		if strings.TrimSpace(tool.Function.Name) == "" {
			return fmt.Errorf("%w: tools[%d] function name must not be empty", errInvalidTools, i)
		}
	}
	for i, fn := range r.Functions {
		if strings.TrimSpace(fn.Name) == "" {
			return fmt.Errorf("%w: functions[%d] name must not be empty", errInvalidTools, i)
		}
	}
	return nil
}

// ToUnified converts the OpenAI request into the canonical format.
func (r ChatCompletionRequest) ToUnified() models.UnifiedChatRequest {
	msgs := make([]models.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		msgs = append(msgs, models.Message{
			Role:       m.Role,
			Content:    m.Content,
			Parts:      m.Parts,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		})
	}

	return models.UnifiedChatRequest{
		Model:       r.Model,
		Messages:    msgs,
		Stream:      r.Stream,
		Temperature: r.Temperature,
		Tools:       r.Tools,
		Functions:   r.Functions,
		User:        r.User,
	}
}

// ChatMessage captures a single message within the chat request.
type ChatMessage struct {
	Role       string
	Content    string
	Parts      []models.ContentPart
	ToolCalls  []models.ToolCall
	ToolCallID string
	Name       string
}

// UnmarshalJSON supports string, null and array-of-parts content formats.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role       *string           `json:"role"`
		Content    json.RawMessage   `json:"content"`
		ToolCalls  []models.ToolCall `json:"tool_calls"`
		ToolCallID string            `json:"tool_call_id"`
		Name       string            `json:"name"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	text, parts, err := extractMessageContent(raw.Content)
	if err != nil {
		return err
	}

	m.Role = models.RoleUser
	if raw.Role != nil {
		m.Role = strings.TrimSpace(*raw.Role)
	}
	m.Content = text
	m.Parts = parts
	m.ToolCalls = raw.ToolCalls
	m.ToolCallID = raw.ToolCallID
	m.Name = strings.TrimSpace(raw.Name)
	return nil
}

func extractMessageContent(raw json.RawMessage) (string, []models.ContentPart, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil, nil
	}

	var segments []struct {
		Type     string          `json:"type"`
		Text     string          `json:"text"`
		ImageURL json.RawMessage `json:"image_url"`
	}
	if err := json.Unmarshal(raw, &segments); err != nil {
		return "", nil, fmt.Errorf("%w: unsupported content structure", errInvalidContent)
	}

	parts := make([]models.ContentPart, 0, len(segments))
	for _, segment := range segments {
		part := models.ContentPart{Type: segment.Type, Text: segment.Text}
		if segment.Type == "" {
			part.Type = "text"
		}
		if len(segment.ImageURL) > 0 {
			part.ImageURL = extractImageURL(segment.ImageURL)
		}
		parts = append(parts, part)
	}
	return "", parts, nil
}

// extractImageURL accepts both {"url": "..."} and a bare string.
func extractImageURL(raw json.RawMessage) string {
	var wrapped struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.URL
	}
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare
	}
	return ""
}

// ChatCompletionChunk is one streamed chat.completion.chunk payload.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is the single choice carried by a streamed chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	Logprobs     any        `json:"logprobs"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta is the incremental message content of a chunk. A zero delta
// encodes as an empty object; otherwise content is always present, as null
// while reasoning is streamed.
type ChunkDelta struct {
	Role             string
	Content          *string
	ReasoningContent *string
}

// MarshalJSON implements json.Marshaler.
func (d ChunkDelta) MarshalJSON() ([]byte, error) {
	if d.Role == "" && d.Content == nil && d.ReasoningContent == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(struct {
		Role             string  `json:"role,omitempty"`
		Content          *string `json:"content"`
		ReasoningContent *string `json:"reasoning_content,omitempty"`
	}{d.Role, d.Content, d.ReasoningContent})
}

// NewChunk builds a single-choice streaming chunk.
func NewChunk(id, model string, created int64, delta ChunkDelta, finishReason *string) ChatCompletionChunk {
	return ChatCompletionChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []ChunkChoice{{Index: 0, Delta: delta, FinishReason: finishReason}},
	}
}

// ChatCompletionResponse models the OpenAI-compatible chat response.
type ChatCompletionResponse struct {
	ID                string           `json:"id"`
	Object            string           `json:"object"`
	Created           int64            `json:"created"`
	Model             string           `json:"model"`
	SystemFingerprint string           `json:"system_fingerprint,omitempty"`
	Choices           []ResponseChoice `json:"choices"`
}

// ResponseChoice represents a single choice in the response payload.
type ResponseChoice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	Logprobs     any             `json:"logprobs"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant message of a non-streaming response.
type ResponseMessage struct {
	Role      string            `json:"role"`
	Content   *string           `json:"content"`
	ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
}

// NewResponse builds a single-choice chat.completion response.
func NewResponse(id, model string, created int64, msg ResponseMessage, finishReason string) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:                id,
		Object:            "chat.completion",
		Created:           created,
		Model:             model,
		SystemFingerprint: SystemFingerprint,
		Choices: []ResponseChoice{{
			Index:        0,
			Message:      msg,
			FinishReason: finishReason,
		}},
	}
}

// SystemFingerprint is reported on every non-streaming response.
const SystemFingerprint = "fp_44709d6fcb"

// ModelList is the /v1/models response.
type ModelList struct {
	Object string       `json:"object"`
	Data   []ModelEntry `json:"data"`
}

// ModelEntry is one model in a ModelList.
type ModelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// FromModels converts registry models into the OpenAI list shape.
func FromModels(list []models.Model, createdUnix int64) ModelList {
	out := ModelList{Object: "list", Data: make([]ModelEntry, 0, len(list))}
	for _, m := range list {
		out.Data = append(out.Data, ModelEntry{
			ID:      m.ID,
			Object:  "model",
			Created: createdUnix,
			OwnedBy: m.Provider,
		})
	}
	return out
}
