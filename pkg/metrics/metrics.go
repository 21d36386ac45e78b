// Package metrics exposes the Prometheus collectors of the chat service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeRechart = "rechart"
)

// Metrics owns a private registry so tests and multiple servers never
// collide on registration. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	chatTurns        *prometheus.CounterVec
	executionErrors  *prometheus.CounterVec
	tableCorrections prometheus.Counter
	llmDuration      *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	mcpToolCalls     *prometheus.CounterVec
	mcpToolDuration  *prometheus.HistogramVec
}

// New creates and registers all collectors, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chatTurns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlchat_chat_turns_total",
				Help: "Total number of chat turns by outcome.",
			},
			[]string{"outcome"},
		),
		executionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlchat_sql_execution_errors_total",
				Help: "Total number of failed SQL executions by error class.",
			},
			[]string{"class"},
		),
		tableCorrections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sqlchat_table_corrections_total",
				Help: "Total number of table identifiers rewritten to an existing table.",
			},
		),
		llmDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sqlchat_llm_request_duration_seconds",
				Help:    "Latency of completion requests by pipeline operation.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"operation"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlchat_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sqlchat_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		mcpToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlchat_mcp_tool_calls_total",
				Help: "Total number of MCP tool calls by tool and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		mcpToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sqlchat_mcp_tool_duration_seconds",
				Help:    "Latency of MCP tool calls.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
	}

	m.registry.MustRegister(
		m.chatTurns,
		m.executionErrors,
		m.tableCorrections,
		m.llmDuration,
		m.httpRequests,
		m.httpDuration,
		m.mcpToolCalls,
		m.mcpToolDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ChatTurn(outcome string) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ExecutionError(class string) {
	if m == nil {
		return
	}
	m.executionErrors.WithLabelValues(class).Inc()
}

func (m *Metrics) TableCorrections(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tableCorrections.Add(float64(n))
}

// ObserveLLM records the time since start for a completion made by operation.
func (m *Metrics) ObserveLLM(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.llmDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

// ObserveMCPTool records one MCP tool call.
func (m *Metrics) ObserveMCPTool(tool, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.mcpToolCalls.WithLabelValues(tool, outcome).Inc()
	m.mcpToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}
