package tracking

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts courier poll activity.
type Metrics struct {
	ChecksTotal         prometheus.Counter
	CheckFailures       prometheus.Counter
	EventsAppended      prometheus.Counter
	TerminalTransitions prometheus.Counter
}

// NewMetrics registers the tracker counters on reg, or on the default
// registry when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{}

	m.ChecksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atelier_tracker_checks_total",
		Help: "Number of courier page checks attempted",
	})
	reg.MustRegister(m.ChecksTotal)

	m.CheckFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atelier_tracker_check_failures_total",
		Help: "Number of courier page checks that failed",
	})
	reg.MustRegister(m.CheckFailures)

	m.EventsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atelier_tracker_events_appended_total",
		Help: "Number of fresh timeline events appended to shipments",
	})
	reg.MustRegister(m.EventsAppended)

	m.TerminalTransitions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atelier_tracker_terminal_transitions_total",
		Help: "Number of shipments that reached delivered or returned",
	})
	reg.MustRegister(m.TerminalTransitions)

	return m
}
