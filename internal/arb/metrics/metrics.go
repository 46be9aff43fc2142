// Package metrics registers the Prometheus collectors the engine exposes
// on its HTTP surface.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the engine updates during normal
// operation.
type Metrics struct {
	FanoutCycleSeconds   *prometheus.HistogramVec
	FanoutErrorsTotal    *prometheus.CounterVec
	VenueHealthGauge     *prometheus.GaugeVec
	OpportunitiesTotal   *prometheus.CounterVec
	ExecutionOutcomeTotal *prometheus.CounterVec
	TransferOutcomeTotal *prometheus.CounterVec
}

// New constructs and registers the engine's metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FanoutCycleSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arbengine",
			Subsystem: "fanout",
			Name:      "cycle_seconds",
			Help:      "Duration of one market data poll cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"venue", "kind"}),

		FanoutErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbengine",
			Subsystem: "fanout",
			Name:      "errors_total",
			Help:      "Market data fetch errors by venue.",
		}, []string{"venue", "kind"}),

		VenueHealthGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "arbengine",
			Subsystem: "fanout",
			Name:      "venue_healthy",
			Help:      "1 if the venue connection is healthy, 0 otherwise.",
		}, []string{"venue"}),

		OpportunitiesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbengine",
			Subsystem: "filter",
			Name:      "opportunities_total",
			Help:      "Detected opportunities by outcome (accepted, rejected reason).",
		}, []string{"outcome"}),

		ExecutionOutcomeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbengine",
			Subsystem: "execution",
			Name:      "outcome_total",
			Help:      "Completed executions by terminal status.",
		}, []string{"status"}),

		TransferOutcomeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbengine",
			Subsystem: "router",
			Name:      "transfer_outcome_total",
			Help:      "Fund transfers by terminal status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.FanoutCycleSeconds,
		m.FanoutErrorsTotal,
		m.VenueHealthGauge,
		m.OpportunitiesTotal,
		m.ExecutionOutcomeTotal,
		m.TransferOutcomeTotal,
	)
	return m
}
