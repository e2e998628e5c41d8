package notification

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Sends *prometheus.CounterVec
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		Sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "notification",
			Name:      "sends_total",
			Help:      "Notification deliveries, by channel type and status.",
		}, []string{"channel_type", "status"}),
	}
	reg.MustRegister(m.Sends)
	return m
}
