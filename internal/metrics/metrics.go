package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	relationTypeTotal   *prometheus.CounterVec
	mutationErrorsTotal *prometheus.CounterVec
	relationLatency     prometheus.Histogram
	idempotencyReplays  prometheus.Counter
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	emitFailuresTotal   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		relationTypeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relation_type_total",
			Help: "Successful relation writes by relation type.",
		}, []string{"relationType"}),
		mutationErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mutation_errors_total",
			Help: "Failed relation writes by error code.",
		}, []string{"code"}),
		relationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relation_latency_ms",
			Help:    "Latency of relation writes in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000},
		}),
		idempotencyReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "idempotency_replays_total",
			Help: "Requests answered from a stored idempotency record.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "HTTP request duration in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route"}),
		emitFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relation_emit_failures_total",
			Help: "Change-set events that could not be published.",
		}),
	}
	m.registry.MustRegister(
		m.relationTypeTotal,
		m.mutationErrorsTotal,
		m.relationLatency,
		m.idempotencyReplays,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.emitFailuresTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RelationWritten(relationType string, took time.Duration) {
	m.relationTypeTotal.WithLabelValues(relationType).Inc()
	m.relationLatency.Observe(float64(took.Milliseconds()))
}

func (m *Metrics) MutationFailed(code string) {
	m.mutationErrorsTotal.WithLabelValues(code).Inc()
}

func (m *Metrics) IdempotencyReplayed() {
	m.idempotencyReplays.Inc()
}

func (m *Metrics) EmitFailed() {
	m.emitFailuresTotal.Inc()
}

func (m *Metrics) HTTPRequest(method, route string, status int, took time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(float64(took.Milliseconds()))
}
