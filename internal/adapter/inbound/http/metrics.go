// Package http provides the inbound HTTP transport for the mandate
// authority service.
package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics exposed by the service, per
// SPEC_FULL.md §3's domain stack (client_golang, grounded on the
// teacher's own use of it for the same concern).
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	MandatesIssued    *prometheus.CounterVec
	PolicyEvaluations *prometheus.CounterVec
	AuditDropsTotal   prometheus.Counter
	KillEventsTotal   prometheus.Counter
}

// NewMetrics creates and registers every metric with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mandate_authority",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mandate_authority",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		MandatesIssued: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mandate_authority",
				Name:      "mandates_issued_total",
				Help:      "Total mandates issued, by outcome (issued/denied)",
			},
			[]string{"outcome"},
		),
		PolicyEvaluations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mandate_authority",
				Name:      "policy_evaluations_total",
				Help:      "Total rule-evaluation passes, by result",
			},
			[]string{"result"},
		),
		AuditDropsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "mandate_authority",
				Name:      "audit_drops_total",
				Help:      "Total audit records dropped due to backpressure",
			},
		),
		KillEventsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "mandate_authority",
				Name:      "kill_events_total",
				Help:      "Total agent kill events recorded",
			},
		),
	}
}
