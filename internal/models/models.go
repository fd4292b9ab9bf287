package models

import "encoding/json"

// Unified (client-facing) roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// RoleBot is the backend name for assistant-authored messages.
const RoleBot = "bot"

// Message is a single conversational message in the unified schema.
type Message struct {
	Role       string
	Content    string
	Parts      []ContentPart
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// Structured reports whether the content arrived as a list of typed parts.
func (m Message) Structured() bool {
	return m.Parts != nil
}

// ContentPart is one typed element of structured message content.
type ContentPart struct {
	Type     string
	Text     string
	ImageURL string
}

// ToolCall is a function invocation requested by the model. It is used both for
// replayed history and for the reassembled records returned to clients.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult is the outcome of executing a previously requested tool call.
type ToolResult struct {
	Role       string `json:"role"`
	Name       string `json:"name"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// Tool is the canonical tool declaration.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable function and its parameter schema.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// UnifiedChatRequest is the canonical representation of a chat completion.
type UnifiedChatRequest struct {
	Model       string
	Messages    []Message
	Stream      bool
	Temperature *float64
	Tools       []Tool
	Functions   []FunctionDefinition
	User        string
}

// BackendMessage is a message in the backend protocol.
type BackendMessage struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`

	// ImageURL is captured from structured user content but never sent.
	ImageURL string `json:"-"`
}

// BackendQuery is the single outbound query sent to a bot.
type BackendQuery struct {
	Version          string             `json:"version"`
	Type             string             `json:"type"`
	Query            []BackendMessage   `json:"query"`
	UserID           string             `json:"user_id"`
	ConversationID   string             `json:"conversation_id"`
	MessageID        string             `json:"message_id"`
	Metadata         string             `json:"metadata"`
	APIKey           string             `json:"api_key"`
	AccessKey        string             `json:"access_key"`
	Temperature      float64            `json:"temperature"`
	SkipSystemPrompt bool               `json:"skip_system_prompt"`
	LogitBias        map[string]float64 `json:"logit_bias"`
	StopSequences    []string           `json:"stop_sequences"`
	LanguageCode     string             `json:"language_code"`
	Tools            []Tool             `json:"tools,omitempty"`
	ToolCalls        []ToolCall         `json:"tool_calls,omitempty"`
	ToolResults      []ToolResult       `json:"tool_results,omitempty"`
}

// PartialEvent is one increment of backend output. It holds either free text
// or a structured backend-native delta, never both.
type PartialEvent struct {
	text string
	data json.RawMessage
}

// TextEvent returns a free-form text event.
func TextEvent(text string) PartialEvent {
	return PartialEvent{text: text}
}

// StructuredEvent returns an event carrying a raw backend delta.
func StructuredEvent(data json.RawMessage) PartialEvent {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return PartialEvent{data: data}
}

// Text returns the text delta. It is empty for structured events.
func (e PartialEvent) Text() string {
	return e.text
}

// Data returns the raw structured delta, if any.
func (e PartialEvent) Data() (json.RawMessage, bool) {
	return e.data, e.data != nil
}

// Model identifies an exposed model and the bot that serves it.
type Model struct {
	ID       string
	Bot      string
	Provider string
}
