package handler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the planning API collectors.
type Metrics struct {
	plans    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "popbatch",
			Name:      "plans_total",
			Help:      "Plans requested, by intent kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "popbatch",
			Name:      "plan_duration_seconds",
			Help:      "Time spent building a plan, including ledger reads.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	reg.MustRegister(m.plans, m.duration)
	return m
}

func (m *Metrics) observe(kind, outcome string, seconds float64) {
	m.plans.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(seconds)
}
