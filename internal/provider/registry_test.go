package provider_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poe-router/internal/models"
	"poe-router/internal/provider"
)

type stubProvider struct {
	name   string
	models []models.Model
}

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) ListModels(context.Context) ([]models.Model, error) {
	return s.models, nil
}

func (s stubProvider) Stream(context.Context, provider.Request) (provider.Stream, error) {
	return nil, errors.New("not implemented")
}

func TestRegistryLookupAndAliases(t *testing.T) {
	reg := provider.NewRegistry()
	p := stubProvider{name: "poe", models: []models.Model{
		{ID: "gpt-4o", Bot: "GPT-4o", Provider: "poe"},
		{ID: "claude", Bot: "Claude-3.5-Sonnet", Provider: "poe"},
	}}
	require.NoError(t, reg.RegisterProvider(context.Background(), p, map[string]string{"gpt-4": "gpt-4o"}))

	model, got, err := reg.LookupModel("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", model.ID)
	assert.Equal(t, "GPT-4o", model.Bot)
	assert.Equal(t, "poe", got.Name())

	_, _, err = reg.LookupModel("missing")
	assert.ErrorIs(t, err, provider.ErrUnknownModel)

	var ids []string
	for _, m := range reg.Models() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"claude", "gpt-4", "gpt-4o"}, ids)
}

func TestRegistryRejectsConflicts(t *testing.T) {
	ctx := context.Background()
	models1 := []models.Model{{ID: "a", Bot: "A"}}

	t.Run("duplicate model", func(t *testing.T) {
		reg := provider.NewRegistry()
		require.NoError(t, reg.RegisterProvider(ctx, stubProvider{name: "one", models: models1}, nil))
		err := reg.RegisterProvider(ctx, stubProvider{name: "two", models: models1}, nil)
		assert.ErrorIs(t, err, provider.ErrDuplicateModel)
	})

	t.Run("duplicate provider", func(t *testing.T) {
		reg := provider.NewRegistry()
		require.NoError(t, reg.RegisterProvider(ctx, stubProvider{name: "one", models: models1}, nil))
		assert.Error(t, reg.RegisterProvider(ctx, stubProvider{name: "one"}, nil))
	})

	t.Run("alias to unknown model", func(t *testing.T) {
		reg := provider.NewRegistry()
		err := reg.RegisterProvider(ctx, stubProvider{name: "one", models: models1}, map[string]string{"b": "missing"})
		assert.ErrorContains(t, err, "unknown model")
	})

	t.Run("alias shadows model", func(t *testing.T) {
		reg := provider.NewRegistry()
		err := reg.RegisterProvider(ctx, stubProvider{name: "one", models: models1}, map[string]string{"a": "a"})
		assert.ErrorContains(t, err, "conflicts")
	})

	t.Run("nil provider", func(t *testing.T) {
		assert.Error(t, provider.NewRegistry().RegisterProvider(ctx, nil, nil))
	})
}

func TestBackendErrorMessage(t *testing.T) {
	assert.Equal(t, "backend error status 429: slow down", (&provider.BackendError{StatusCode: 429, Message: "slow down"}).Error())
	assert.Equal(t, "backend error: bot crashed", (&provider.BackendError{Message: "bot crashed"}).Error())
}

func TestRegistryFailedRegistrationLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	reg := provider.NewRegistry()
	p := stubProvider{name: "poe", models: []models.Model{{ID: "a", Bot: "A"}}}

	err := reg.RegisterProvider(ctx, p, map[string]string{"b": "missing"})
	require.Error(t, err)

	_, _, err = reg.LookupModel("a")
	assert.ErrorIs(t, err, provider.ErrUnknownModel)

	require.NoError(t, reg.RegisterProvider(ctx, p, nil))
}
