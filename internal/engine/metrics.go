package engine

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	EventsTotal   *prometheus.CounterVec
	EventDuration *prometheus.HistogramVec
	Conflicts     prometheus.Counter
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Events handled, by kind and status.",
		}, []string{"kind", "status"}),
		EventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "samsara",
			Subsystem: "engine",
			Name:      "event_duration_seconds",
			Help:      "End-to-end handling latency per event kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samsara",
			Subsystem: "engine",
			Name:      "version_conflicts_total",
			Help:      "Optimistic version conflicts that triggered a retry.",
		}),
	}
	reg.MustRegister(m.EventsTotal, m.EventDuration, m.Conflicts)
	return m
}
