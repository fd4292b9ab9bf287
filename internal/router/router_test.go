package router

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poe-router/internal/models"
	"poe-router/internal/provider"
	"poe-router/internal/translator"
)

type fakeStream struct{}

func (fakeStream) Events() iter.Seq2[models.PartialEvent, error] {
	return func(yield func(models.PartialEvent, error) bool) {}
}

func (fakeStream) Close() error { return nil }

type fakeProvider struct {
	calls []provider.Request
	err   error
}

func (f *fakeProvider) Name() string { return "poe" }

func (f *fakeProvider) ListModels(context.Context) ([]models.Model, error) {
	return []models.Model{{ID: "gpt-4o", Bot: "GPT-4o", Provider: "poe"}}, nil
}

func (f *fakeProvider) Stream(_ context.Context, req provider.Request) (provider.Stream, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return fakeStream{}, nil
}

func newRouter(t *testing.T, opts Options) (*Router, *fakeProvider) {
	t.Helper()
	fp := &fakeProvider{}
	reg := provider.NewRegistry()
	require.NoError(t, reg.RegisterProvider(context.Background(), fp, map[string]string{"gpt-4": "gpt-4o"}))
	if opts.Fallback == nil {
		opts.Fallback = fp
	}
	return New(reg, opts), fp
}

func userMessage(text string) []models.Message {
	return []models.Message{{Role: models.RoleUser, Content: text}}
}

func TestChatResolvesAliasAndDefaults(t *testing.T) {
	rt, fp := newRouter(t, Options{DefaultModel: "gpt-4o", DefaultTemperature: 0.7})

	res, err := rt.Chat(context.Background(), models.UnifiedChatRequest{Model: "gpt-4", Messages: userMessage("hi")}, "sk-1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", res.Model)
	assert.Equal(t, []models.Tool{}, res.Tools)

	require.Len(t, fp.calls, 1)
	call := fp.calls[0]
	assert.Equal(t, "GPT-4o", call.Bot)
	assert.Equal(t, "sk-1", call.APIKey)
	assert.Equal(t, 0.7, call.Query.Temperature)
	assert.Equal(t, translator.ProtocolVersion, call.Query.Version)
	assert.Equal(t, "hi", call.Query.Query[0].Content)
}

func TestChatDefaultModelAndTemperature(t *testing.T) {
	rt, fp := newRouter(t, Options{DefaultModel: "gpt-4o", DefaultTemperature: 0.7})
	temp := 0.0

	res, err := rt.Chat(context.Background(), models.UnifiedChatRequest{Messages: userMessage("hi"), Temperature: &temp}, "k")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", res.Model)
	assert.Equal(t, 0.0, fp.calls[0].Query.Temperature, "explicit zero is kept")
}

func TestChatInvalidRoleFailsBeforeBackend(t *testing.T) {
	rt, fp := newRouter(t, Options{DefaultModel: "gpt-4o"})

	_, err := rt.Chat(context.Background(), models.UnifiedChatRequest{
		Model:    "gpt-4o",
		Messages: []models.Message{{Role: "function", Content: "x"}},
	}, "k")
	assert.ErrorIs(t, err, translator.ErrInvalidRole)
	assert.Empty(t, fp.calls)
}

func TestChatUnlistedBots(t *testing.T) {
	t.Run("passthrough", func(t *testing.T) {
		rt, fp := newRouter(t, Options{AllowUnlistedBots: true})
		_, err := rt.Chat(context.Background(), models.UnifiedChatRequest{Model: "Llama-3-70b", Messages: userMessage("hi")}, "k")
		require.NoError(t, err)
		assert.Equal(t, "Llama-3-70b", fp.calls[0].Bot)
	})

	t.Run("rejected", func(t *testing.T) {
		rt, fp := newRouter(t, Options{AllowUnlistedBots: false})
		_, err := rt.Chat(context.Background(), models.UnifiedChatRequest{Model: "Llama-3-70b", Messages: userMessage("hi")}, "k")
		assert.ErrorIs(t, err, provider.ErrUnknownModel)
		assert.Empty(t, fp.calls)
	})
}

func TestChatForwardsToolsAndHistory(t *testing.T) {
	rt, fp := newRouter(t, Options{DefaultModel: "gpt-4o"})
	fn := models.FunctionDefinition{Name: "get_weather"}

	res, err := rt.Chat(context.Background(), models.UnifiedChatRequest{
		Model: "gpt-4o",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "weather?"},
			{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "c1", Function: models.FunctionCall{Name: "get_weather", Arguments: "{}"}}}},
			{Role: models.RoleTool, ToolCallID: "c1", Content: "sunny"},
		},
		Functions: []models.FunctionDefinition{fn},
	}, "k")
	require.NoError(t, err)

	assert.Equal(t, []models.Tool{{Type: "function", Function: fn}}, res.Tools)
	query := fp.calls[0].Query
	assert.Len(t, query.Query, 1)
	assert.Len(t, query.Tools, 1)
	assert.Len(t, query.ToolCalls, 1)
	assert.Len(t, query.ToolResults, 1)
}

func TestChatWrapsBackendError(t *testing.T) {
	rt, fp := newRouter(t, Options{DefaultModel: "gpt-4o"})
	fp.err = &provider.BackendError{StatusCode: 401, Message: "bad key"}

	_, err := rt.Chat(context.Background(), models.UnifiedChatRequest{Messages: userMessage("hi")}, "k")
	var backendErr *provider.BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, 401, backendErr.StatusCode)
}

func TestModels(t *testing.T) {
	rt, _ := newRouter(t, Options{})
	assert.Len(t, rt.Models(), 2)
}
