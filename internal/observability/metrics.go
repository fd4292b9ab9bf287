// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the router.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets spans bot latencies from 100ms to 2 minutes.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts HTTP requests by method, status class and path.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poe_router_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "path"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poe_router_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "path"},
	)

	// StreamingConnections tracks in-flight SSE responses.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "poe_router_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// BackendRequestsTotal counts queries sent to bots by outcome.
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poe_router_backend_requests_total",
			Help: "Backend bot requests",
		},
		[]string{"bot", "status"},
	)

	// BackendLatency records the time until the bot accepted the query.
	BackendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poe_router_backend_latency_seconds",
			Help:    "Backend time to response headers",
			Buckets: LLMBuckets,
		},
		[]string{"bot"},
	)

	// BackendEventsTotal counts decoded backend events by kind.
	BackendEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poe_router_backend_events_total",
			Help: "Backend partial events",
		},
		[]string{"kind"},
	)

	// ToolCallsTotal counts reassembled tool calls by response mode.
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poe_router_tool_calls_total",
			Help: "Reassembled tool calls",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		BackendRequestsTotal,
		BackendLatency,
		BackendEventsTotal,
		ToolCallsTotal,
	)
}
