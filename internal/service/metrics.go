package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts account flow outcomes.
type Metrics struct {
	authEvents *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		authEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "habit_auth_events_total",
				Help: "Account flow attempts by event and outcome",
			},
			[]string{"event", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.authEvents)
	}
	return m
}

func (m *Metrics) observe(event string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.authEvents.WithLabelValues(event, outcome).Inc()
}
