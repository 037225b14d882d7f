// Package metrics exposes Prometheus instrumentation for the agent core.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agent core. A nil *Metrics is
// valid and records nothing, so instrumentation stays optional in tests.
type Metrics struct {
	registry *prometheus.Registry

	MessagesProcessedTotal *prometheus.CounterVec
	MessageDuration        *prometheus.HistogramVec
	ModelCallsTotal        *prometheus.CounterVec
	TokensUsedTotal        *prometheus.CounterVec

	ToolExecutionsTotal   *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec

	RateLimitRejectionsTotal *prometheus.CounterVec
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		MessagesProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_messages_processed_total",
				Help: "Total number of inbound messages processed",
			},
			[]string{"tenant", "handled"},
		),
		MessageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_message_duration_seconds",
				Help:    "Duration of the message pipeline in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tenant"},
		),
		ModelCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_model_calls_total",
				Help: "Total number of model gateway calls",
			},
			[]string{"status"},
		),
		TokensUsedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tokens_used_total",
				Help: "Total number of model tokens consumed",
			},
			[]string{"tenant"},
		),

		ToolExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tool_executions_total",
				Help: "Total number of tool executions",
			},
			[]string{"tool", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_rate_limit_rejections_total",
				Help: "Total number of operations rejected by the rate limiter",
			},
			[]string{"tenant", "kind"},
		),
	}

	registry.MustRegister(
		m.MessagesProcessedTotal,
		m.MessageDuration,
		m.ModelCallsTotal,
		m.TokensUsedTotal,
		m.ToolExecutionsTotal,
		m.ToolExecutionDuration,
		m.RateLimitRejectionsTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveMessage records one completed message pipeline run.
func (m *Metrics) ObserveMessage(tenant string, handled bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.MessagesProcessedTotal.WithLabelValues(tenant, strconv.FormatBool(handled)).Inc()
	m.MessageDuration.WithLabelValues(tenant).Observe(duration.Seconds())
}

// ObserveModelCall records one model gateway round-trip.
func (m *Metrics) ObserveModelCall(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.ModelCallsTotal.WithLabelValues(status).Inc()
}

// ObserveTokens records token consumption for a tenant.
func (m *Metrics) ObserveTokens(tenant string, tokens int) {
	if m == nil || tokens <= 0 {
		return
	}
	m.TokensUsedTotal.WithLabelValues(tenant).Add(float64(tokens))
}

// ObserveToolExecution records one tool execution.
func (m *Metrics) ObserveToolExecution(toolName string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	m.ToolExecutionsTotal.WithLabelValues(toolName, status).Inc()
	if duration > 0 {
		m.ToolExecutionDuration.WithLabelValues(toolName).Observe(duration.Seconds())
	}
}

// ObserveRateLimitRejection records one rejected operation.
func (m *Metrics) ObserveRateLimitRejection(tenant, kind string) {
	if m == nil {
		return
	}
	m.RateLimitRejectionsTotal.WithLabelValues(tenant, kind).Inc()
}
