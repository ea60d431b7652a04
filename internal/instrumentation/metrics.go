// Package instrumentation exposes Prometheus metrics for the HTTP server and
// the availability service.
package instrumentation

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/meetgrid/internal/application"
)

const namespace = "meetgrid"

// Metrics holds every collector registered by the service.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	fetches          *prometheus.CounterVec
	fetchDuration    prometheus.Histogram
	publishes        *prometheus.CounterVec
	aggregations     prometheus.Histogram
	aggregateRecords prometheus.Histogram
}

var _ application.MetricsRecorder = (*Metrics)(nil)

// New registers the service collectors, plus Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "fetches_total",
			Help:      "Calendar busy-interval fetches by outcome.",
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of calendar fetches including credential lookup.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "publishes_total",
			Help:      "Availability publishes by outcome.",
		}, []string{"outcome"}),
		aggregations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "aggregation_duration_seconds",
			Help:      "Time spent reading and bucketizing a session window.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		aggregateRecords: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "aggregation_records",
			Help:      "Number of availability records per aggregation.",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.fetches,
		m.fetchDuration,
		m.publishes,
		m.aggregations,
		m.aggregateRecords,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one completed request.
func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// ObserveFetch records a calendar fetch outcome.
func (m *Metrics) ObserveFetch(outcome string, duration time.Duration) {
	m.fetches.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(duration.Seconds())
}

// ObservePublish records a publish outcome.
func (m *Metrics) ObservePublish(outcome string) {
	m.publishes.WithLabelValues(outcome).Inc()
}

// ObserveAggregation records one aggregation.
func (m *Metrics) ObserveAggregation(duration time.Duration, records int) {
	m.aggregations.Observe(duration.Seconds())
	m.aggregateRecords.Observe(float64(records))
}
