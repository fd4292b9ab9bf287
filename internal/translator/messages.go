package translator

import (
	"errors"
	"fmt"
	"log/slog"

	"poe-router/internal/models"
)

const (
	contentTypePlain    = "text/plain"
	contentTypeMarkdown = "text/markdown"
)

// ErrInvalidRole is matched by every InvalidRoleError.
var ErrInvalidRole = errors.New("invalid role")

// InvalidRoleError reports a message role the backend cannot represent.
type InvalidRoleError struct {
	Role string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role: %q", e.Role)
}

// Is makes errors.Is(err, ErrInvalidRole) hold.
func (e *InvalidRoleError) Is(target error) bool {
	return target == ErrInvalidRole
}

// Conversation is a unified message list split into the three backend classes.
type Conversation struct {
	Messages    []models.BackendMessage
	ToolCalls   []models.ToolCall
	ToolResults []models.ToolResult
}

// ConvertMessages partitions unified messages by role into backend messages,
// replayed tool calls and tool results. Input order is preserved within each
// class. An unknown role fails the whole conversion.
func ConvertMessages(msgs []models.Message) (Conversation, error) {
	var conv Conversation
	for i, msg := range msgs {
		switch msg.Role {
		case models.RoleSystem:
			conv.Messages = append(conv.Messages, models.BackendMessage{
				Role:        models.RoleSystem,
				Content:     messageText(msg),
				ContentType: contentTypePlain,
			})

		case models.RoleUser:
			conv.Messages = append(conv.Messages, convertUserMessage(i, msg))

		case models.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				conv.Messages = append(conv.Messages, models.BackendMessage{
					Role:        models.RoleBot,
					Content:     messageText(msg),
					ContentType: contentTypeMarkdown,
				})
				continue
			}
			for _, call := range msg.ToolCalls {
				if call.Type == "" {
					call.Type = "function"
				}
				conv.ToolCalls = append(conv.ToolCalls, call)
			}

		case models.RoleTool:
			conv.ToolResults = append(conv.ToolResults, models.ToolResult{
				Role:       models.RoleTool,
				Name:       msg.Name,
				ToolCallID: msg.ToolCallID,
				Content:    messageText(msg),
			})

		default:
			return Conversation{}, &InvalidRoleError{Role: msg.Role}
		}
	}
	return conv, nil
}

func convertUserMessage(index int, msg models.Message) models.BackendMessage {
	out := models.BackendMessage{
		Role:        models.RoleUser,
		Content:     messageText(msg),
		ContentType: contentTypeMarkdown,
	}
	if !msg.Structured() {
		return out
	}

	for _, part := range msg.Parts {
		if part.Type == "image_url" {
			out.ImageURL = part.ImageURL
			break
		}
	}
	if out.ImageURL != "" {
		slog.Debug("dropping image content, backend query carries text only", "message_index", index)
	}
	return out
}

// messageText returns the plain content, or the first text part when the
// content arrived as a list of parts.
func messageText(msg models.Message) string {
	if !msg.Structured() {
		return msg.Content
	}
	for _, part := range msg.Parts {
		if part.Type == "text" {
			return part.Text
		}
	}
	return ""
}
