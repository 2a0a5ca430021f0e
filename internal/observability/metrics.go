// Package observability implements the pipeline's request logger,
// metrics registry, event bus, and per-request tracing (spec.md §4.8).
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus instrument the pipeline emits into,
// all registered against a private registry rather than the global
// default so a caller embedding this module never collides with its
// own metrics namespace.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	ActiveConnections  *prometheus.GaugeVec
	RateLimitRemaining *prometheus.GaugeVec
	RecordingDropped   prometheus.Counter
	EventsDropped      prometheus.Counter
}

// NewMetrics builds and registers the pipeline's instrument set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mockforge",
			Name:      "requests_total",
			Help:      "Total requests processed by the core pipeline, by protocol and response status.",
		}, []string{"protocol", "status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mockforge",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage processing duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		ActiveConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mockforge",
			Name:      "active_connections",
			Help:      "Currently in-flight requests, by protocol.",
		}, []string{"protocol"}),
		RateLimitRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mockforge",
			Name:      "rate_limit_remaining",
			Help:      "Estimated remaining token-bucket capacity.",
		}, []string{"scope"}),
		RecordingDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mockforge",
			Name:      "recording_writes_dropped_total",
			Help:      "Recorded exchanges dropped due to async buffer overflow.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mockforge",
			Name:      "events_dropped_total",
			Help:      "Pipeline events dropped because a subscriber was too slow to keep up.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.StageDuration,
		m.ActiveConnections,
		m.RateLimitRemaining,
		m.RecordingDropped,
		m.EventsDropped,
	)
	return m
}

// Handler exposes the registry in the Prometheus text exposition
// format, for mounting under the admin HTTP surface.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
