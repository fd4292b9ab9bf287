package provider

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"poe-router/internal/models"
)

// ErrMissingAPIKey indicates a request reached the backend layer without a credential.
var ErrMissingAPIKey = errors.New("api key must be provided")

// Provider opens backend event streams for the bots it serves.
type Provider interface {
	Name() string
	ListModels(ctx context.Context) ([]models.Model, error)
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Request is one outbound bot query with the caller's own credential.
type Request struct {
	Bot    string
	APIKey string
	Query  models.BackendQuery
}

// Stream is a live, ordered source of backend partial events. Events may be
// ranged over once; Close releases the connection and is safe to call more
// than once.
type Stream interface {
	Events() iter.Seq2[models.PartialEvent, error]
	Close() error
}

// BackendError reports a failed bot query: either a non-success HTTP status
// or an error event received mid-stream (StatusCode 0).
type BackendError struct {
	StatusCode int
	Message    string
	AllowRetry bool
}

func (e *BackendError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("backend error: %s", e.Message)
	}
	return fmt.Sprintf("backend error status %d: %s", e.StatusCode, e.Message)
}
