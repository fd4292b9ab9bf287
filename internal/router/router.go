package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"poe-router/internal/models"
	"poe-router/internal/provider"
	"poe-router/internal/translator"
)

// Options control how requests are resolved to bots.
type Options struct {
	DefaultModel       string
	DefaultTemperature float64
	// AllowUnlistedBots sends unknown model IDs verbatim as bot names to Fallback.
	AllowUnlistedBots bool
	Fallback          provider.Provider
}

// Router translates unified requests and opens the matching bot stream.
type Router struct {
	registry *provider.Registry
	opts     Options
	logger   *slog.Logger
}

// New constructs a router backed by the provided registry.
func New(registry *provider.Registry, opts Options) *Router {
	return &Router{
		registry: registry,
		opts:     opts,
		logger:   slog.Default(),
	}
}

// Result is an open backend stream together with what the response
// assembler needs to render it.
type Result struct {
	Model  string
	Tools  []models.Tool
	Stream provider.Stream
}

// Chat translates req and opens a stream to the resolved bot using the
// caller's apiKey. Translation errors are returned before any backend call.
func (r *Router) Chat(ctx context.Context, req models.UnifiedChatRequest, apiKey string) (*Result, error) {
	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = r.opts.DefaultModel
	}

	conv, err := translator.ConvertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	temperature := r.opts.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	tools := translator.NormalizeTools(req.Tools, req.Functions)
	query := translator.BuildQuery(conv, temperature, tools)

	modelInfo, providerImpl, err := r.resolve(modelID)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("dispatching chat request",
		"model", modelID,
		"bot", modelInfo.Bot,
		"messages", len(query.Query),
		"tools", len(tools),
		"stream", req.Stream,
	)

	stream, err := providerImpl.Stream(ctx, provider.Request{
		Bot:    modelInfo.Bot,
		APIKey: apiKey,
		Query:  query,
	})
	if err != nil {
		return nil, fmt.Errorf("provider %s chat request: %w", providerImpl.Name(), err)
	}

	return &Result{Model: modelID, Tools: tools, Stream: stream}, nil
}

// Models lists the configured models and aliases.
func (r *Router) Models() []models.Model {
	return r.registry.Models()
}

func (r *Router) resolve(modelID string) (models.Model, provider.Provider, error) {
	modelInfo, providerImpl, err := r.registry.LookupModel(modelID)
	if err == nil {
		return modelInfo, providerImpl, nil
	}
	if !errors.Is(err, provider.ErrUnknownModel) || !r.opts.AllowUnlistedBots || r.opts.Fallback == nil {
		return models.Model{}, nil, err
	}
	return models.Model{ID: modelID, Bot: modelID, Provider: r.opts.Fallback.Name()}, r.opts.Fallback, nil
}
