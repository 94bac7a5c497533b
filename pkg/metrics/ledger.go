package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks balance mutations and reconciliation health.
// A nil *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	mutations  *prometheus.CounterVec
	retries    prometheus.Counter
	violations *prometheus.GaugeVec
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_mutations_total",
		Help:      "Balance mutations by operation and result code.",
	}, []string{"operation", "result"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_conflict_retries_total",
		Help:      "Transactions retried after a concurrent version change.",
	})
	violations := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_reconcile_violations",
		Help:      "Invariant violations found by the last reconciliation run.",
	}, []string{"check"})
	reg.MustRegister(mutations, retries, violations)
	return &LedgerMetrics{mutations: mutations, retries: retries, violations: violations}
}

// ObserveMutation counts one mutation; result is "ok" or an error code.
func (m *LedgerMetrics) ObserveMutation(operation, result string) {
	if m == nil || m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(normalizeLabel(operation), normalizeLabel(result)).Inc()
}

func (m *LedgerMetrics) IncRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

// SetViolations replaces the gauge values with the latest counts per check.
func (m *LedgerMetrics) SetViolations(byCheck map[string]int) {
	if m == nil || m.violations == nil {
		return
	}
	m.violations.Reset()
	for check, n := range byCheck {
		m.violations.WithLabelValues(normalizeLabel(check)).Set(float64(n))
	}
}
