// Package metrics holds the Prometheus collectors of a miniservice: inbound
// HTTP traffic measured by the request pipeline and outbound calls made by
// the REST client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe for concurrent use.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge

	clientRequestsTotal   *prometheus.CounterVec
	clientRequestDuration *prometheus.HistogramVec
	clientRetriesTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance backed by its own registry, so several
// instances can live in one process (tests, multiple hosts).
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of inbound HTTP requests",
			},
			[]string{"method", "route", "code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Inbound HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		httpInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of inbound HTTP requests currently being served",
			},
		),
		clientRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restclient_requests_total",
				Help: "Total number of outbound REST client attempts",
			},
			[]string{"method", "code"},
		),
		clientRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "restclient_request_duration_seconds",
				Help:    "Outbound REST client attempt latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		clientRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restclient_retries_total",
				Help: "Total number of outbound REST client retries",
			},
			[]string{"method"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpInFlight,
		m.clientRequestsTotal,
		m.clientRequestDuration,
		m.clientRetriesTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry so callers can add collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTPRequest records one served inbound request. route is the
// matched route pattern, never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTPRequest(method, route string, statusCode int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// InFlight increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) InFlight() func() {
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// ObserveClientRequest records one REST client attempt. A statusCode of zero
// means the attempt failed before a response was received.
func (m *Metrics) ObserveClientRequest(method string, statusCode int, elapsed time.Duration) {
	m.clientRequestsTotal.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	m.clientRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveClientRetry(method string) {
	m.clientRetriesTotal.WithLabelValues(method).Inc()
}
