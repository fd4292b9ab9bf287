package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsMiddlewareCountsStatusAndPath(t *testing.T) {
	handler := MetricsMiddleware("/v1/models")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	known := RequestsTotal.WithLabelValues(http.MethodGet, "2xx", "/v1/models")
	other := RequestsTotal.WithLabelValues(http.MethodGet, "4xx", "other")
	knownBefore := testutil.ToFloat64(known)
	otherBefore := testutil.ToFloat64(other)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/abc", nil))

	assert.Equal(t, knownBefore+1, testutil.ToFloat64(known))
	assert.Equal(t, otherBefore+1, testutil.ToFloat64(other))
}

func TestMetricsMiddlewareTracksStreams(t *testing.T) {
	var during float64
	handler := MetricsMiddleware("/v1/chat/completions")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		during = testutil.ToFloat64(StreamingConnections)
	}))

	before := testutil.ToFloat64(StreamingConnections)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil))

	assert.Equal(t, before+1, during)
	assert.Equal(t, before, testutil.ToFloat64(StreamingConnections))
	assert.True(t, rec.Flushed)
}
