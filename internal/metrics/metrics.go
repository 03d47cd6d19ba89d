// Package metrics exposes prometheus counters for the controller. The
// registry is injected so there are no package-level globals.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the controller's counters. A nil *Metrics is valid and
// turns every record call into a no-op.
type Metrics struct {
	decisions *prometheus.CounterVec
	cycles    *prometheus.CounterVec
	commands  *prometheus.CounterVec
	skips     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bedwetter_decisions_total",
			Help: "Watering decisions by reason.",
		}, []string{"reason"}),
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bedwetter_cycles_total",
			Help: "Completed watering cycles by terminal outcome.",
		}, []string{"outcome"}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bedwetter_commands_total",
			Help: "Inbound commands by name.",
		}, []string{"command"}),
		skips: f.NewCounter(prometheus.CounterOpts{
			Name: "bedwetter_skipped_occurrences_total",
			Help: "Scheduled occurrences consumed by the skip flag.",
		}),
	}
}

func (m *Metrics) Decision(reason string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(reason).Inc()
}

func (m *Metrics) Cycle(outcome string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Command(name string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name).Inc()
}

func (m *Metrics) Skip() {
	if m == nil {
		return
	}
	m.skips.Inc()
}
