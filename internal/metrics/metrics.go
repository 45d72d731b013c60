// Package metrics exposes prometheus instruments for the travel service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gogo_travel"

// Metrics groups the service instruments on one registry.
type Metrics struct {
	registry *prometheus.Registry

	ToolCalls     *prometheus.CounterVec
	ToolDuration  *prometheus.HistogramVec
	NodeRuns      *prometheus.CounterVec
	NodeDuration  *prometheus.HistogramVec
	Turns         *prometheus.CounterVec
	Approvals     *prometheus.CounterVec
	LLMRequests   *prometheus.CounterVec
	ActiveClients prometheus.Gauge
}

// New registers every instrument on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls handled by tool nodes, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		NodeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_runs_total",
			Help:      "Graph node executions, by node and outcome.",
		}, []string{"node", "outcome"}),
		NodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Graph node latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed runs, by kind and resulting status.",
		}, []string{"kind", "status"}),
		Approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_decisions_total",
			Help:      "Approval decisions, by decision.",
		}, []string{"decision"}),
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Chat completion requests, by assistant and outcome.",
		}, []string{"assistant", "outcome"}),
		ActiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected WebSocket clients.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ToolCalls, m.ToolDuration,
		m.NodeRuns, m.NodeDuration,
		m.Turns, m.Approvals, m.LLMRequests,
		m.ActiveClients,
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTool records one tool call. A nil receiver is a no-op.
func (m *Metrics) ObserveTool(tool, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveNode records one node execution.
func (m *Metrics) ObserveNode(node, kind string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.NodeRuns.WithLabelValues(node, outcome(err)).Inc()
	m.NodeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveTurn records the end of a run.
func (m *Metrics) ObserveTurn(kind, status string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(kind, status).Inc()
}

// ObserveApproval records an approval decision.
func (m *Metrics) ObserveApproval(decision string) {
	if m == nil {
		return
	}
	m.Approvals.WithLabelValues(decision).Inc()
}

// ObserveLLM records one chat completion request.
func (m *Metrics) ObserveLLM(assistant string, err error) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(assistant, outcome(err)).Inc()
}

// ClientConnected adjusts the WebSocket client gauge.
func (m *Metrics) ClientConnected(delta int) {
	if m == nil {
		return
	}
	m.ActiveClients.Add(float64(delta))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
