// Package poe implements the backend stream client for Poe bot endpoints.
package poe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"poe-router/internal/config"
	"poe-router/internal/models"
	"poe-router/internal/observability"
	"poe-router/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	eventStream     = "text/event-stream"
	userAgent       = "poe-router/0.1"
	errorBodyLimit  = 4096
)

// Poe SSE event names.
const (
	eventText            = "text"
	eventReplaceResponse = "replace_response"
	eventJSON            = "json"
	eventError           = "error"
	eventDone            = "done"
	eventMeta            = "meta"
	eventSuggestedReply  = "suggested_reply"
	eventPing            = "ping"
)

// Provider queries Poe bots over HTTP and decodes their event streams.
type Provider struct {
	name    string
	baseURL string
	headers map[string]string
	client  *http.Client
	models  []models.Model
	logger  *slog.Logger
}

// New creates a Poe provider serving the configured bots.
func New(name string, cfg config.PoeConfig, client *http.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	modelsList := make([]models.Model, 0, len(cfg.Bots))
	for _, bot := range cfg.Bots {
		modelsList = append(modelsList, models.Model{
			ID:       bot.ID,
			Bot:      bot.BotName(),
			Provider: name,
		})
	}

	return &Provider{
		name:    name,
		baseURL: baseURL,
		headers: cfg.Headers,
		client:  client,
		models:  modelsList,
		logger:  slog.Default().With("provider", name),
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) ListModels(ctx context.Context) ([]models.Model, error) {
	result := make([]models.Model, len(p.models))
	copy(result, p.models)
	return result, nil
}

// Stream posts the query to the bot and returns its event stream once the
// backend has answered with a success status. The stream lives as long as
// ctx; cancelling it aborts the read.
func (p *Provider) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, provider.ErrMissingAPIKey
	}
	if strings.TrimSpace(req.Bot) == "" {
		return nil, errors.New("bot name must not be empty")
	}

	httpReq, err := p.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := p.client.Do(httpReq)
	observability.BackendLatency.WithLabelValues(req.Bot).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.BackendRequestsTotal.WithLabelValues(req.Bot, "error").Inc()
		return nil, fmt.Errorf("poe query to bot %s failed: %w", req.Bot, err)
	}
	observability.BackendRequestsTotal.WithLabelValues(req.Bot, strconv.Itoa(httpResp.StatusCode)).Inc()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		defer httpResp.Body.Close()
		return nil, parseAPIError(httpResp)
	}

	p.logger.Debug("backend stream opened", "bot", req.Bot, "content_type", httpResp.Header.Get("Content-Type"))
	return &stream{
		ctx:    ctx,
		body:   httpResp.Body,
		bot:    req.Bot,
		logger: p.logger,
	}, nil
}

func (p *Provider) newRequest(ctx context.Context, req provider.Request) (*http.Request, error) {
	body, err := json.Marshal(req.Query)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+req.Bot, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", eventStream)
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// parseAPIError builds a BackendError from a non-success response. Poe error
// bodies are not uniform, so the message is taken from the first field
// present.
func parseAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))

	message := ""
	if gjson.ValidBytes(data) {
		for _, path := range []string{"text", "error.message", "error", "detail", "message"} {
			if v := gjson.GetBytes(data, path); v.Exists() && v.Type == gjson.String && v.String() != "" {
				message = v.String()
				break
			}
		}
	}
	if message == "" {
		message = strings.TrimSpace(string(data))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &provider.BackendError{
		StatusCode: resp.StatusCode,
		Message:    message,
		AllowRetry: gjson.GetBytes(data, "allow_retry").Bool(),
	}
}

type stream struct {
	ctx       context.Context
	body      io.ReadCloser
	bot       string
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// Events decodes the Poe event stream lazily. The body is closed when the
// sequence ends or the consumer stops early.
func (s *stream) Events() iter.Seq2[models.PartialEvent, error] {
	return func(yield func(models.PartialEvent, error) bool) {
		defer s.Close()

		dec := newDecoder(s.body)
		for {
			f, err := dec.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctxErr := s.ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				yield(models.PartialEvent{}, fmt.Errorf("read backend stream: %w", err))
				return
			}

			switch f.Event {
			case eventText, eventReplaceResponse:
				observability.BackendEventsTotal.WithLabelValues("text").Inc()
				if !yield(models.TextEvent(gjson.Get(f.Data, "text").String()), nil) {
					return
				}
			case eventJSON:
				if !gjson.Valid(f.Data) {
					s.logger.Warn("skipping undecodable json event", "bot", s.bot, "data", truncate(f.Data, 200))
					continue
				}
				observability.BackendEventsTotal.WithLabelValues("structured").Inc()
				if !yield(models.StructuredEvent(json.RawMessage(f.Data)), nil) {
					return
				}
			case eventError:
				observability.BackendEventsTotal.WithLabelValues("error").Inc()
				message := gjson.Get(f.Data, "text").String()
				if message == "" {
					message = "bot reported an error"
				}
				yield(models.PartialEvent{}, &provider.BackendError{
					Message:    message,
					AllowRetry: gjson.Get(f.Data, "allow_retry").Bool(),
				})
				return
			case eventDone:
				return
			case eventMeta, eventSuggestedReply, eventPing:
				continue
			default:
				s.logger.Debug("ignoring unknown event", "bot", s.bot, "event", f.Event)
			}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
