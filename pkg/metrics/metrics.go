// Package metrics holds the Prometheus collectors exported at /metrics.
// Every method is safe on a nil *Metrics so components can run without
// instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xeleb"

// DefaultLatencyBuckets are the histogram buckets in seconds.
var DefaultLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// Metrics bundles the collectors and the registry they are registered with.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	stageLatency    *prometheus.HistogramVec
	rerankFallbacks prometheus.Counter
	toolCalls       *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	jobsDropped     prometheus.Counter
	turnEvents      *prometheus.CounterVec
	ingested        *prometheus.CounterVec
}

// New creates collectors on a fresh registry together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "API requests by route and status code",
	}, []string{"route", "status"})

	m.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "API request latency in seconds",
		Buckets:   DefaultLatencyBuckets,
	}, []string{"route"})

	m.stageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "retrieval",
		Name:      "stage_duration_seconds",
		Help:      "Retrieval pipeline stage latency in seconds",
		Buckets:   DefaultLatencyBuckets,
	}, []string{"stage"})

	m.rerankFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "retrieval",
		Name:      "rerank_fallbacks_total",
		Help:      "Searches that fell back to vector order after a rerank failure",
	})

	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "tool_calls_total",
		Help:      "Agent tool calls by tool and status",
	}, []string{"tool", "status"})

	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "queue_depth",
		Help:      "Jobs waiting in the worker queue",
	})

	m.jobsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "jobs_dropped_total",
		Help:      "Jobs dropped because the worker queue was full",
	})

	m.turnEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "eventstream",
		Name:      "turn_events_total",
		Help:      "Conversation turn events by publish result",
	}, []string{"result"})

	m.ingested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "knowledge",
		Name:      "documents_total",
		Help:      "Knowledge documents processed by result",
	}, []string{"result"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestLatency,
		m.stageLatency,
		m.rerankFallbacks,
		m.toolCalls,
		m.queueDepth,
		m.jobsDropped,
		m.turnEvents,
		m.ingested,
	)

	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(route, status string, started time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, status).Inc()
	m.requestLatency.WithLabelValues(route).Observe(time.Since(started).Seconds())
}

// ObserveStage records the latency of one retrieval stage
// (embed, query, rerank).
func (m *Metrics) ObserveStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

func (m *Metrics) RerankFallback() {
	if m == nil {
		return
	}
	m.rerankFallbacks.Inc()
}

func (m *Metrics) ToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) JobDropped() {
	if m == nil {
		return
	}
	m.jobsDropped.Inc()
}

// TurnEvent counts a publish attempt; result is "published" or "failed".
func (m *Metrics) TurnEvent(result string) {
	if m == nil {
		return
	}
	m.turnEvents.WithLabelValues(result).Inc()
}

// Ingested counts a knowledge document; result is "ok", "skipped" or "failed".
func (m *Metrics) Ingested(result string) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(result).Inc()
}
