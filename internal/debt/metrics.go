package debt

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Recorded *prometheus.CounterVec
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		Recorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "debt",
			Name:      "recorded_total",
			Help:      "Relationship debts recorded, by severity.",
		}, []string{"severity"}),
	}
	reg.MustRegister(m.Recorded)
	return m
}
