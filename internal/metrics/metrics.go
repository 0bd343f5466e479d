// Package metrics holds the Prometheus collectors for the decision engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	DecisionsTotal    *prometheus.CounterVec
	EscalationsTotal  prometheus.Counter
	ReviewsTotal      *prometheus.CounterVec
	DecideDuration    prometheus.Histogram
	CacheHitsTotal    prometheus.Counter
	NotificationsSent *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
//
//   - geogate_decisions_total{verdict}
//   - geogate_escalations_total
//   - geogate_reviews_total{resolution}
//   - geogate_decide_duration_seconds
//   - geogate_idempotent_replays_total
//   - geogate_notifications_total{result}
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geogate_decisions_total",
				Help: "Total number of decisions recorded, by final verdict",
			},
			[]string{"verdict"},
		),
		EscalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geogate_escalations_total",
			Help: "Total number of decisions routed to human review",
		}),
		ReviewsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geogate_reviews_total",
				Help: "Total number of human reviews submitted, by resolution",
			},
			[]string{"resolution"},
		),
		DecideDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geogate_decide_duration_seconds",
			Help:    "Duration of decide requests in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geogate_idempotent_replays_total",
			Help: "Total number of decide requests answered from the idempotency cache",
		}),
		NotificationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geogate_notifications_total",
				Help: "Total number of reviewer notification attempts, by result",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.DecisionsTotal,
			m.EscalationsTotal,
			m.ReviewsTotal,
			m.DecideDuration,
			m.CacheHitsTotal,
			m.NotificationsSent,
		)
	}
	return m
}

// ObserveDecide records one decide call. A nil receiver is a no-op.
func (m *Metrics) ObserveDecide(verdict string, escalated bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(verdict).Inc()
	if escalated {
		m.EscalationsTotal.Inc()
	}
	m.DecideDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveReplay() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) ObserveReview(resolution string) {
	if m == nil {
		return
	}
	m.ReviewsTotal.WithLabelValues(resolution).Inc()
}

func (m *Metrics) ObserveNotification(result string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(result).Inc()
}
