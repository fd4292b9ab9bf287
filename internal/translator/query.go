package translator

import "poe-router/internal/models"

const (
	// ProtocolVersion is the bot query protocol version spoken upstream.
	ProtocolVersion = "1.1"
	queryType       = "query"
	missingKey      = "<missing>"
	languageCode    = "en"
)

// BuildQuery assembles the outbound backend query. Temperature is passed
// through unclamped.
func BuildQuery(conv Conversation, temperature float64, tools []models.Tool) models.BackendQuery {
	messages := conv.Messages
	if messages == nil {
		messages = []models.BackendMessage{}
	}

	query := models.BackendQuery{
		Version:          ProtocolVersion,
		Type:             queryType,
		Query:            messages,
		APIKey:           missingKey,
		AccessKey:        missingKey,
		Temperature:      temperature,
		SkipSystemPrompt: false,
		LogitBias:        map[string]float64{},
		StopSequences:    []string{},
		LanguageCode:     languageCode,
	}
	if len(tools) > 0 {
		query.Tools = tools
	}
	if len(conv.ToolCalls) > 0 {
		query.ToolCalls = conv.ToolCalls
	}
	if len(conv.ToolResults) > 0 {
		query.ToolResults = conv.ToolResults
	}
	return query
}
