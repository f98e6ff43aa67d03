package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"yard-occupancy-backend/internal/ledger"
)

// Ledger records occupancy events as Prometheus counters. It satisfies
// ledger.Observer.
type Ledger struct {
	assignments *prometheus.CounterVec
	clears      *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
}

// NewLedger registers the ledger counters on reg.
func NewLedger(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yard",
			Subsystem: "ledger",
			Name:      "assignments_total",
			Help:      "Resources that received a container assignment.",
		}, []string{"kind"}),
		clears: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yard",
			Subsystem: "ledger",
			Name:      "cleared_slots_total",
			Help:      "Occupancy slots flipped from present to cleared.",
		}, []string{"kind"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yard",
			Subsystem: "ledger",
			Name:      "version_conflicts_total",
			Help:      "Ledger writes rejected because the stored version moved.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.assignments, m.clears, m.conflicts)
	return m
}

func (m *Ledger) Assigned(kind ledger.Kind, resources int) {
	m.assignments.WithLabelValues(string(kind)).Add(float64(resources))
}

func (m *Ledger) Cleared(kind ledger.Kind, slots int) {
	m.clears.WithLabelValues(string(kind)).Add(float64(slots))
}

func (m *Ledger) Conflict(kind ledger.Kind) {
	m.conflicts.WithLabelValues(string(kind)).Inc()
}
