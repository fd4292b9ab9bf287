package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsMiddleware returns middleware that records request metrics.
// Paths outside routes are labelled "other" to bound label cardinality.
//
// It captures:
//   - poe_router_requests_total: method, status class and path
//   - poe_router_request_duration_seconds: method and path
//   - poe_router_streaming_connections_active: while an SSE response is in flight
func MetricsMiddleware(routes ...string) func(http.Handler) http.Handler {
	known := make(map[string]struct{}, len(routes))
	for _, route := range routes {
		known[route] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return metricsHandler(next, known)
	}
}

func metricsHandler(next http.Handler, known map[string]struct{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		if _, ok := known[path]; !ok {
			path = "other"
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if sw.streaming {
				StreamingConnections.Dec()
			}
		}()
		next.ServeHTTP(sw, r)

		statusStr := strconv.Itoa(sw.status/100) + "xx"
		RequestsTotal.WithLabelValues(r.Method, statusStr, path).Inc()
		RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// statusWriter captures the status code and notices SSE responses.
type statusWriter struct {
	http.ResponseWriter
	status    int
	written   bool
	streaming bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
		if strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream") {
			w.streaming = true
			StreamingConnections.Inc()
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush is required for SSE streaming through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
