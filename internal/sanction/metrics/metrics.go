package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the sanction lifecycle. All methods are
// safe on a nil receiver.
type Metrics struct {
	// Sanctions created by tier
	SanctionsApplied *prometheus.CounterVec

	// Transaction attempts that hit a store conflict and were retried
	TxRetries *prometheus.CounterVec

	// Operation latency by operation and outcome
	OperationLatency *prometheus.HistogramVec

	// Documents transitioned by sweeps
	SweepProcessed *prometheus.CounterVec

	// Sweeps that stopped on a failed chunk
	SweepFailures *prometheus.CounterVec

	// Sanctions lifted by resolve or renew
	SanctionsLifted *prometheus.CounterVec
}

// New registers the metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SanctionsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sanctions_applied_total",
			Help: "Sanctions created on violation confirmation by type",
		}, []string{"type"}), // type: "warning", "suspension", "revocation"

		TxRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sanctions_tx_retries_total",
			Help: "Transaction attempts retried after a store conflict or timeout",
		}, []string{"operation"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sanctions_operation_duration_seconds",
			Help:    "Duration of sanction lifecycle operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation", "outcome"}),

		SweepProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sanctions_sweep_processed_total",
			Help: "Documents transitioned by expiration sweeps",
		}, []string{"sweep"}), // sweep: "sanctions", "registrations"

		SweepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sanctions_sweep_failures_total",
			Help: "Expiration sweeps that stopped on a failed batch",
		}, []string{"sweep"}),

		SanctionsLifted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sanctions_lifted_total",
			Help: "Active sanctions lifted administratively or by renewal",
		}, []string{"via"}), // via: "resolve", "renew"
	}
}

func (m *Metrics) IncSanctionApplied(sanctionType string) {
	if m != nil {
		m.SanctionsApplied.WithLabelValues(sanctionType).Inc()
	}
}

func (m *Metrics) IncTxRetry(operation string) {
	if m != nil {
		m.TxRetries.WithLabelValues(operation).Inc()
	}
}

// ObserveOperation records the latency of one operation; outcome is "ok" or
// the error code.
func (m *Metrics) ObserveOperation(operation, outcome string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation, outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) AddSweepProcessed(sweep string, n int) {
	if m != nil && n > 0 {
		m.SweepProcessed.WithLabelValues(sweep).Add(float64(n))
	}
}

func (m *Metrics) IncSweepFailure(sweep string) {
	if m != nil {
		m.SweepFailures.WithLabelValues(sweep).Inc()
	}
}

func (m *Metrics) AddSanctionsLifted(via string, n int) {
	if m != nil && n > 0 {
		m.SanctionsLifted.WithLabelValues(via).Add(float64(n))
	}
}
