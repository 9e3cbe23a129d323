// Package metrics exposes Prometheus instruments for tool servers, tool
// calls, model requests and the context store. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mcphub"

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Server session metrics
	SessionsConnected   prometheus.Gauge
	ServerFailuresTotal *prometheus.CounterVec

	// Tool metrics
	ToolCallsTotal    *prometheus.CounterVec
	ToolCallDuration  *prometheus.HistogramVec
	CatalogToolsTotal prometheus.Gauge

	// Inference gateway metrics
	GatewayRequestsTotal   *prometheus.CounterVec
	GatewayRequestDuration prometheus.Histogram

	// Turn and context store metrics
	TurnsTotal       *prometheus.CounterVec
	TurnIterations   prometheus.Histogram
	StoreWritesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		SessionsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_connected",
			Help:      "Number of tool servers with a live session",
		}),
		ServerFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_failures_total",
			Help:      "Tool server failures by stage (connect, handshake, catalog)",
		}, []string{"server", "stage"}),

		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls by outcome",
		}, []string{"tool", "status"}),
		ToolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool calls in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		CatalogToolsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_tools",
			Help:      "Tools in the most recently built catalog",
		}),

		GatewayRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Inference requests by provider and outcome",
		}, []string{"provider", "status"}),
		GatewayRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of inference requests in seconds, retries included",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by outcome",
		}, []string{"outcome"}),
		TurnIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_model_requests",
			Help:      "Model requests issued per turn",
			Buckets:   []float64{1, 2, 3, 5, 8, 10, 20},
		}),
		StoreWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Context store persistence writes by outcome",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.SessionsConnected,
		m.ServerFailuresTotal,
		m.ToolCallsTotal,
		m.ToolCallDuration,
		m.CatalogToolsTotal,
		m.GatewayRequestsTotal,
		m.GatewayRequestDuration,
		m.TurnsTotal,
		m.TurnIterations,
		m.StoreWritesTotal,
	)
	return m
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// SetSessions records the number of live server sessions.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsConnected.Set(float64(n))
}

// ServerFailure counts a failure of server at stage.
func (m *Metrics) ServerFailure(server, stage string) {
	if m == nil {
		return
	}
	m.ServerFailuresTotal.WithLabelValues(server, stage).Inc()
}

// SetCatalogSize records the size of the aggregated tool catalog.
func (m *Metrics) SetCatalogSize(n int) {
	if m == nil {
		return
	}
	m.CatalogToolsTotal.Set(float64(n))
}

// ToolCall records one tool invocation.
func (m *Metrics) ToolCall(tool string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool, status(ok)).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// GatewayRequest records one inference request.
func (m *Metrics) GatewayRequest(provider string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.GatewayRequestsTotal.WithLabelValues(provider, status(ok)).Inc()
	m.GatewayRequestDuration.Observe(d.Seconds())
}

// Turn records the outcome of one conversation turn.
func (m *Metrics) Turn(outcome string, modelRequests int) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnIterations.Observe(float64(modelRequests))
}

// StoreWrite records one context store persistence attempt.
func (m *Metrics) StoreWrite(ok bool) {
	if m == nil {
		return
	}
	m.StoreWritesTotal.WithLabelValues(status(ok)).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
