package atonement

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the atonement engine.
type Metrics struct {
	PlansCreated   *prometheus.CounterVec
	ProofsAccepted *prometheus.CounterVec
	PlansCompleted prometheus.Counter
	PlansExpired   prometheus.Counter
}

// NewMetrics creates and registers atonement metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		PlansCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "atonement",
			Name:      "plans_created_total",
			Help:      "Total atonement plans opened, by severity.",
		}, []string{"severity"}),
		ProofsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "atonement",
			Name:      "proofs_accepted_total",
			Help:      "Total accepted proof submissions, by mechanism.",
		}, []string{"mechanism"}),
		PlansCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "atonement",
			Name:      "plans_completed_total",
			Help:      "Total plans whose every task reached its requirement.",
		}),
		PlansExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "atonement",
			Name:      "plans_expired_total",
			Help:      "Total plans expired by the background sweep.",
		}),
	}

	reg.MustRegister(m.PlansCreated, m.ProofsAccepted, m.PlansCompleted, m.PlansExpired)
	return m
}
