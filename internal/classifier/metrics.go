package classifier

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the action classifier.
type Metrics struct {
	Misses      prometheus.Counter
	Escalations prometheus.Counter
	Reloads     prometheus.Counter
}

// NewMetrics creates and registers classifier metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "classifier",
			Name:      "misses_total",
			Help:      "Total actions that had no catalog entry (classified neutral).",
		}),
		Escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "classifier",
			Name:      "escalations_total",
			Help:      "Total severity tiers bumped by progressive escalation.",
		}),
		Reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "classifier",
			Name:      "catalog_reloads_total",
			Help:      "Total successful catalog hot reloads.",
		}),
	}

	reg.MustRegister(m.Misses, m.Escalations, m.Reloads)
	return m
}
