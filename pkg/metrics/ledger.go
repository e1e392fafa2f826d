package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics counts dispatches, optimistic-lock conflicts and manifest
// number issuance.
type LedgerMetrics struct {
	dispatches         *prometheus.CounterVec
	dispatchedQuantity *prometheus.CounterVec
	conflicts          *prometheus.CounterVec
	numbersIssued      *prometheus.CounterVec
	numberFallbacks    *prometheus.CounterVec
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	m := &LedgerMetrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "branchledger_dispatches_total",
			Help: "Successful item dispatches by destination kind.",
		}, []string{"destination"}),
		dispatchedQuantity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "branchledger_dispatched_quantity_total",
			Help: "Units dispatched by destination kind.",
		}, []string{"destination"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "branchledger_version_conflicts_total",
			Help: "Writes rejected because the entry version moved.",
		}, []string{"operation"}),
		numbersIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "branchledger_manifest_numbers_issued_total",
			Help: "Manifest numbers issued by source.",
		}, []string{"source"}),
		numberFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "branchledger_manifest_number_fallbacks_total",
			Help: "Manifest numbers issued out of sequence because the lookup failed.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.dispatches, m.dispatchedQuantity, m.conflicts, m.numbersIssued, m.numberFallbacks)
	return m
}

func (m *LedgerMetrics) ObserveDispatch(destination string, quantity int) {
	if m == nil || m.dispatches == nil {
		return
	}
	label := normalizeLabel(destination)
	m.dispatches.WithLabelValues(label).Inc()
	m.dispatchedQuantity.WithLabelValues(label).Add(float64(quantity))
}

func (m *LedgerMetrics) IncConflict(operation string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncIssued satisfies the sequence recorder.
func (m *LedgerMetrics) IncIssued(source string) {
	if m == nil || m.numbersIssued == nil {
		return
	}
	m.numbersIssued.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncFallback satisfies the sequence recorder.
func (m *LedgerMetrics) IncFallback(reason string) {
	if m == nil || m.numberFallbacks == nil {
		return
	}
	m.numberFallbacks.WithLabelValues(normalizeLabel(reason)).Inc()
}
