package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dispatch pipeline
type Metrics struct {
	// Event metrics
	EventsEmittedTotal   *prometheus.CounterVec
	HandlerFailuresTotal *prometheus.CounterVec
	HandlerDuration      *prometheus.HistogramVec

	// Webhook delivery metrics
	DeliveriesTotal       *prometheus.CounterVec
	DeliveryDuration      *prometheus.HistogramVec
	DeliveriesRateLimited *prometheus.CounterVec
	SubscriptionsActive   prometheus.Gauge

	// Audit metrics
	AuditWritesTotal        prometheus.Counter
	AuditWriteFailuresTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		EventsEmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_events_emitted_total",
				Help: "Total number of domain events emitted",
			},
			[]string{"event_type"},
		),
		HandlerFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_event_handler_failures_total",
				Help: "Total number of in-process handler failures",
			},
			[]string{"event_type"},
		),
		HandlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backoffice_event_handler_duration_seconds",
				Help:    "Handler execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_webhook_deliveries_total",
				Help: "Total number of webhook delivery attempts",
			},
			[]string{"event", "status"},
		),
		DeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backoffice_webhook_delivery_duration_seconds",
				Help:    "Webhook delivery duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"event"},
		),
		DeliveriesRateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_webhook_deliveries_rate_limited_total",
				Help: "Total number of deliveries dropped by the rate limiter",
			},
			[]string{"event"},
		),
		SubscriptionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "backoffice_webhook_subscriptions_active",
				Help: "Number of active webhook subscriptions",
			},
		),
		AuditWritesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "backoffice_audit_writes_total",
				Help: "Total number of audit log writes",
			},
		),
		AuditWriteFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "backoffice_audit_write_failures_total",
				Help: "Total number of failed audit log writes",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.EventsEmittedTotal,
		m.HandlerFailuresTotal,
		m.HandlerDuration,
		m.DeliveriesTotal,
		m.DeliveryDuration,
		m.DeliveriesRateLimited,
		m.SubscriptionsActive,
		m.AuditWritesTotal,
		m.AuditWriteFailuresTotal,
	)

	return m
}

// InitMetrics creates metrics with a fresh registry
func InitMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// Handler returns an HTTP handler exposing the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
