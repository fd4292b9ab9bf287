package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"poe-router/internal/assembler"
	"poe-router/internal/config"
	"poe-router/internal/observability"
	"poe-router/internal/router"
	"poe-router/internal/translator"
)

const (
	shutdownGracePeriod = 10 * time.Second
	readHeaderTimeout   = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
	rateLimitExpiry     = 3 * time.Minute
)

const (
	routeHealth = "/health"
	routeModels = "/v1/models"
	routeChat   = "/v1/chat/completions"
	routeMetric = "/metrics"
)

type Server struct {
	cfg     config.Config
	router  *router.Router
	app     *echo.Echo
	address string
	started time.Time
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, rt *router.Router) (*Server, error) {
	if rt == nil {
		return nil, errors.New("router must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = openAIErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))
	e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.Server.MaxBodyBytes, 10)))
	e.Use(middleware.Decompress())
	e.Use(decompressZstd())

	if limit := cfg.Server.RateLimit; limit.RequestsPerSecond > 0 {
		burst := limit.Burst
		if burst == 0 {
			burst = int(limit.RequestsPerSecond) + 1
		}
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: func(c echo.Context) bool {
				return c.Path() == routeHealth || c.Path() == routeMetric
			},
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(limit.RequestsPerSecond),
				Burst:     burst,
				ExpiresIn: rateLimitExpiry,
			}),
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				return requestError{
					Status:  http.StatusTooManyRequests,
					Message: "rate limit exceeded",
					Type:    "rate_limit_error",
				}
			},
		}))
	}

	srv := &Server{
		cfg:     cfg,
		router:  rt,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
		started: time.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler returns the fully wrapped HTTP handler, including request metrics.
func (s *Server) Handler() http.Handler {
	return observability.MetricsMiddleware(routeHealth, routeModels, routeChat, routeMetric)(s.app)
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port, s.cfg.Poe.DefaultModel)
	slog.Info("starting server", "addr", s.address, "backend", s.cfg.Poe.BaseURL)

	// No write timeout: chat streams last as long as the bot keeps talking.
	httpServer := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET(routeHealth, s.handleHealth)
	s.app.GET(routeModels, s.handleModels)
	s.app.POST(routeChat, s.handleChatCompletions)
	s.app.GET(routeMetric, echo.WrapHandler(promhttp.Handler()))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(c echo.Context) error {
	return c.JSON(http.StatusOK, translator.FromModels(s.router.Models(), s.started.Unix()))
}

func (s *Server) handleChatCompletions(c echo.Context) error {
	apiKey, err := bearerToken(c.Request())
	if err != nil {
		return err
	}

	var req translator.ChatCompletionRequest
	if err := s.decodeRequestBody(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	result, err := s.router.Chat(ctx, req.ToUnified(), apiKey)
	if err != nil {
		return toHTTPError(err)
	}
	defer result.Stream.Close()

	asm := assembler.New(result.Model, result.Tools)
	if req.Stream {
		return writeChatStream(c, asm.Frames(result.Stream.Events()))
	}

	resp, err := asm.Aggregate(result.Stream.Events())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// bearerToken extracts the caller's bot API key. It is forwarded to the
// backend as-is and never validated locally.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization))
	if header == "" {
		return "", requestError{
			Status:  http.StatusUnauthorized,
			Message: "Authorization header is missing",
			Type:    "authentication_error",
		}
	}

	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", requestError{
			Status:  http.StatusUnauthorized,
			Message: "Authorization header must use the Bearer scheme",
			Type:    "authentication_error",
		}
	}
	return token, nil
}

func (s *Server) decodeRequestBody(c echo.Context, target any) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, s.cfg.Server.MaxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		return decodeError(err)
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}

func decodeError(err error) error {
	var (
		tooLarge  *http.MaxBytesError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)

	switch {
	case errors.Is(err, io.EOF):
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body is required",
			Type:    "invalid_request_error",
		}
	case errors.As(err, &tooLarge):
		return requestError{
			Status:  http.StatusRequestEntityTooLarge,
			Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			Type:    "invalid_request_error",
		}
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    "invalid_request_error",
		}
	default:
		return requestError{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Type:    "invalid_request_error",
		}
	}
}

func printStartupBanner(port int, defaultModel string) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Println("poe-router ready")
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /metrics")
	fmt.Println("  GET  /v1/models")
	fmt.Println("  POST /v1/chat/completions")
	fmt.Println("Use OpenAI-compatible clients with your Poe API key as the bearer token.")
	fmt.Printf("Example:\n  curl http://%s:%d/v1/chat/completions -H 'Authorization: Bearer $POE_API_KEY' -H 'Content-Type: application/json' -d '{\"model\":\"%s\",\"messages\":[{\"role\":\"user\",\"content\":\"hello\"}]}'\n\n", host, port, defaultModel)
}
