// ABOUTME: Prometheus metrics for protocol requests and tool executions.
// ABOUTME: One Metrics value is created at startup and shared by reference.

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's instrument set on its own registry, so tests
// can create independent instances without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	authFailures     prometheus.Counter
	activeSessions   prometheus.Gauge
}

// New creates a Metrics instance with all instruments registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcp_requests_total",
			Help: "Protocol requests by method and outcome.",
		}, []string{"method", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mcp_request_duration_seconds",
			Help:    "Protocol request handling time by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcp_tool_calls_total",
			Help: "Tool executions by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		toolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mcp_tool_call_duration_seconds",
			Help:    "Tool execution time by tool name.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"tool"}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcp_auth_failures_total",
			Help: "Rejected authentication attempts.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcp_active_sessions",
			Help: "Currently tracked protocol sessions.",
		}),
	}
	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.toolCallsTotal,
		m.toolCallDuration,
		m.authFailures,
		m.activeSessions,
	)
	return m
}

// ObserveRequest records one protocol request.
func (m *Metrics) ObserveRequest(method, outcome string, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(method, outcome).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveToolCall records one tool execution.
func (m *Metrics) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	m.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	m.toolCallDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// AuthFailure records a rejected authentication attempt.
func (m *Metrics) AuthFailure() {
	m.authFailures.Inc()
}

// SessionOpened and SessionClosed track the active session gauge.
func (m *Metrics) SessionOpened() { m.activeSessions.Inc() }

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() { m.activeSessions.Dec() }

// Handler returns the HTTP handler serving this instance's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
