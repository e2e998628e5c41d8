package predictor

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the reward predictor.
type Metrics struct {
	Updates         prometheus.Counter
	Explorations    prometheus.Counter
	RoleTransitions prometheus.Counter
}

// NewMetrics creates and registers predictor metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		Updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "predictor",
			Name:      "q_updates_total",
			Help:      "Total Q-table cell updates.",
		}),
		Explorations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "predictor",
			Name:      "explorations_total",
			Help:      "Total recommendations that explored instead of exploiting.",
		}),
		RoleTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "predictor",
			Name:      "role_transitions_total",
			Help:      "Total predicted role transitions.",
		}),
	}

	reg.MustRegister(m.Updates, m.Explorations, m.RoleTransitions)
	return m
}
