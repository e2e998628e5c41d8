package lifecycle

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the lifecycle state machine.
type Metrics struct {
	Deaths             *prometheus.CounterVec
	Rebirths           prometheus.Counter
	TransitionFailures prometheus.Counter
}

// NewMetrics creates and registers lifecycle metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		Deaths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "lifecycle",
			Name:      "deaths_total",
			Help:      "Total death transitions, by destination loka.",
		}, []string{"loka"}),
		Rebirths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "lifecycle",
			Name:      "rebirths_total",
			Help:      "Total rebirth transitions.",
		}),
		TransitionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "lifecycle",
			Name:      "transition_failures_total",
			Help:      "Total aborted lifecycle transitions (identity stayed alive).",
		}),
	}

	reg.MustRegister(m.Deaths, m.Rebirths, m.TransitionFailures)
	return m
}
