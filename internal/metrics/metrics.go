package metrics

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the settlement core. A nil *Metrics is
// valid and records nothing, so tests can pass nil.
type Metrics struct {
	// Vault operations by name and outcome
	Operations *prometheus.CounterVec

	// Current vault balances in base units
	Balances *prometheus.GaugeVec

	// Relay dispatch latency for remote payments
	DispatchLatency prometheus.Histogram
}

// New creates a Metrics instance with all vault metrics registered on the
// default registry.
func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_operations_total",
			Help: "Total vault operations by name and outcome",
		}, []string{"operation", "outcome"}), // outcome: "success", "rejected", "failed"

		Balances: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_balance_base_units",
			Help: "Current vault balance per balance kind, in asset base units",
		}, []string{"vault_id", "balance"}),

		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_relay_dispatch_duration_seconds",
			Help:    "Duration of relay message submission for remote payments",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// IncrementOperation records a completed operation attempt.
func (m *Metrics) IncrementOperation(operation, outcome string) {
	if m != nil {
		m.Operations.WithLabelValues(operation, outcome).Inc()
	}
}

// SetBalance records the balance gauge. Balances above float64 precision lose
// low-order digits in the gauge only; the ledger stays exact.
func (m *Metrics) SetBalance(vaultID, balance string, amount *big.Int) {
	if m != nil && amount != nil {
		f, _ := new(big.Float).SetInt(amount).Float64()
		m.Balances.WithLabelValues(vaultID, balance).Set(f)
	}
}

// ObserveDispatchLatency records the relay submission duration.
func (m *Metrics) ObserveDispatchLatency(d time.Duration) {
	if m != nil {
		m.DispatchLatency.Observe(d.Seconds())
	}
}
