package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the service collectors. Each instance owns its registry so tests can
// build one without touching the global default.
type Metrics struct {
	Registry                *prometheus.Registry
	HTTPRequests            *prometheus.CounterVec
	HTTPDuration            *prometheus.HistogramVec
	Bookings                *prometheus.CounterVec
	PackageConsumptions     *prometheus.CounterVec
	Refunds                 *prometheus.CounterVec
	WebhookEvents           *prometheus.CounterVec
	Payouts                 *prometheus.CounterVec
	CriticalInconsistencies *prometheus.CounterVec
	JobCacheLookups         *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepcoach",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "prepcoach",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		Bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepcoach",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"outcome"}),
		PackageConsumptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepcoach",
			Name:      "package_consumptions_total",
			Help:      "Coaching package consumption attempts by outcome.",
		}, []string{"outcome"}),
		Refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepcoach",
			Name:      "refunds_total",
			Help:      "Refunds issued through the payment processor by reason and outcome.",
		}, []string{"reason", "outcome"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepcoach",
			Name:      "webhook_events_total",
			Help:      "Payment webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		Payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepcoach",
			Name:      "payouts_total",
			Help:      "Interviewer payout requests by outcome.",
		}, []string{"outcome"}),
		CriticalInconsistencies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepcoach",
			Name:      "critical_inconsistencies_total",
			Help:      "External money movements that could not be recorded locally.",
		}, []string{"operation"}),
		JobCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepcoach",
			Name:      "job_cache_lookups_total",
			Help:      "Job search cache lookups by result.",
		}, []string{"result"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.Bookings,
		m.PackageConsumptions,
		m.Refunds,
		m.WebhookEvents,
		m.Payouts,
		m.CriticalInconsistencies,
		m.JobCacheLookups,
	)
	return m
}
