package bridge

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Pushes       prometheus.Counter
	PushFailures prometheus.Counter
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		Pushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "bridge",
			Name:      "pushes_total",
			Help:      "Influence signals pushed to the behavior endpoint.",
		}),
		PushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "bridge",
			Name:      "push_failures_total",
			Help:      "Influence pushes that failed.",
		}),
	}
	reg.MustRegister(m.Pushes, m.PushFailures)
	return m
}
