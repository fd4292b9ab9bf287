package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"poe-router/internal/models"
)

// ErrUnknownModel indicates the requested model is not registered.
var ErrUnknownModel = errors.New("unknown model")

// ErrDuplicateModel indicates an attempt to register the same model twice.
var ErrDuplicateModel = errors.New("model already registered")

type modelEntry struct {
	model    models.Model
	provider Provider
}

// Registry maps model IDs and their aliases to the provider serving them.
// Aliases resolve at lookup time and report the alias as the model ID.
type Registry struct {
	mu        sync.RWMutex
	models    map[string]modelEntry
	aliases   map[string]string
	providers map[string]Provider
}

// NewRegistry constructs an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		models:    make(map[string]modelEntry),
		aliases:   make(map[string]string),
		providers: make(map[string]Provider),
	}
}

// RegisterProvider adds p, its models and the given aliases. Registration is
// all or nothing: on error the registry is left unchanged.
func (r *Registry) RegisterProvider(ctx context.Context, p Provider, aliases map[string]string) error {
	if p == nil {
		return errors.New("provider must not be nil")
	}

	served, err := p.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models for provider %q: %w", p.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[p.Name()]; exists {
		return fmt.Errorf("provider %q already registered", p.Name())
	}

	added := make(map[string]models.Model, len(served))
	for _, m := range served {
		if r.knownLocked(m.ID) {
			return fmt.Errorf("%w: %s", ErrDuplicateModel, m.ID)
		}
		if _, dup := added[m.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateModel, m.ID)
		}
		added[m.ID] = m
	}

	for alias, target := range aliases {
		if _, clash := added[alias]; clash || r.knownLocked(alias) {
			return fmt.Errorf("alias %q conflicts with existing model", alias)
		}
		if _, ok := added[target]; !ok {
			return fmt.Errorf("alias %q references unknown model %q", alias, target)
		}
	}

	r.providers[p.Name()] = p
	for id, m := range added {
		r.models[id] = modelEntry{model: m, provider: p}
	}
	for alias, target := range aliases {
		r.aliases[alias] = target
	}
	return nil
}

func (r *Registry) knownLocked(id string) bool {
	if _, ok := r.models[id]; ok {
		return true
	}
	_, ok := r.aliases[id]
	return ok
}

// LookupModel returns the provider and metadata for a model ID or alias.
func (r *Registry) LookupModel(modelID string) (models.Model, Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.models[modelID]; ok {
		return entry.model, entry.provider, nil
	}
	if target, ok := r.aliases[modelID]; ok {
		entry := r.models[target]
		aliased := entry.model
		aliased.ID = modelID
		return aliased, entry.provider, nil
	}
	return models.Model{}, nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
}

// Models lists every registered model and alias, sorted by ID.
func (r *Registry) Models() []models.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Model, 0, len(r.models)+len(r.aliases))
	for _, entry := range r.models {
		out = append(out, entry.model)
	}
	for alias, target := range r.aliases {
		m := r.models[target].model
		m.ID = alias
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
