// Package metrics exposes pipeline counters in Prometheus format. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "promessa"

// Metrics owns a private registry so tests can construct many instances.
type Metrics struct {
	registry *prometheus.Registry

	extraction   *prometheus.CounterVec
	scoutQueries *prometheus.CounterVec
	scoutItems   *prometheus.CounterVec
	jobEvents    *prometheus.CounterVec
	verdicts     *prometheus.CounterVec
	auditSeconds prometheus.Histogram
	httpRequests *prometheus.CounterVec
	httpSeconds  *prometheus.HistogramVec
	breakers     *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		extraction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_attempts_total",
			Help:      "Claim extraction attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		scoutQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scout_source_queries_total",
			Help:      "News source queries by source and outcome.",
		}, []string{"source", "outcome"}),
		scoutItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scout_source_items_total",
			Help:      "Items returned by each news source before deduplication.",
		}, []string{"source"}),
		jobEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_events_total",
			Help:      "Audit job lifecycle events.",
		}, []string{"event"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_verdicts_total",
			Help:      "Completed audits by verdict.",
		}, []string{"verdict"}),
		auditSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audit_duration_seconds",
			Help:      "Wall time of one audit computation.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		breakers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Upstream circuit breaker state changes by host and new state.",
		}, []string{"host", "state"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.extraction, m.scoutQueries, m.scoutItems, m.jobEvents,
		m.verdicts, m.auditSeconds, m.httpRequests, m.httpSeconds, m.breakers,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ExtractionAttempt matches extract.Observer.
func (m *Metrics) ExtractionAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.extraction.WithLabelValues(provider, outcome).Inc()
}

// ScoutQuery matches scout.Observer.
func (m *Metrics) ScoutQuery(source, outcome string, items int) {
	if m == nil {
		return
	}
	m.scoutQueries.WithLabelValues(source, outcome).Inc()
	if items > 0 {
		m.scoutItems.WithLabelValues(source).Add(float64(items))
	}
}

// JobEvent matches jobs.Observer.
func (m *Metrics) JobEvent(event string) {
	if m == nil {
		return
	}
	m.jobEvents.WithLabelValues(event).Inc()
}

// AuditCompleted records one finished audit.
func (m *Metrics) AuditCompleted(verdict string, d time.Duration) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(verdict).Inc()
	m.auditSeconds.Observe(d.Seconds())
}

// ObserveHTTP records one served request. route is the matched pattern,
// never the raw path.
func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpSeconds.WithLabelValues(route).Observe(d.Seconds())
}

// BreakerStateChange matches fetch.BreakerOptions.OnStateChange.
func (m *Metrics) BreakerStateChange(host, state string) {
	if m == nil {
		return
	}
	m.breakers.WithLabelValues(host, state).Inc()
}

// GaugeFunc registers a gauge read from fn at scrape time, such as the
// number of in-flight jobs.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}
