package ledger

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the token ledger.
type Metrics struct {
	DeltasApplied *prometheus.CounterVec
	DecayRemoved  *prometheus.CounterVec
}

// NewMetrics creates and registers ledger metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		DeltasApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "ledger",
			Name:      "deltas_applied_total",
			Help:      "Total balance deltas applied, by category.",
		}, []string{"category"}),
		DecayRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "ledger",
			Name:      "decay_removed_total",
			Help:      "Total token amount removed by decay, by category.",
		}, []string{"category"}),
	}

	reg.MustRegister(m.DeltasApplied, m.DecayRemoved)
	return m
}
