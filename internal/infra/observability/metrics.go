package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the core banking service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	transactionsTotal *prometheus.CounterVec
	rejectionsTotal   *prometheus.CounterVec
	accrualItems      *prometheus.CounterVec
	accrualRuns       *prometheus.CounterVec
	storageErrors     *prometheus.CounterVec
}

// AccrualSnapshot summarizes accrual-job counters for the jobs endpoint.
type AccrualSnapshot struct {
	Runs           int64 `json:"runs"`
	ItemsProcessed int64 `json:"items_processed"`
	ItemsSkipped   int64 `json:"items_skipped"`
	ItemsFailed    int64 `json:"items_failed"`
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corebank_operation_duration_seconds",
				Help:    "Duration of ledger operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		transactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corebank_transactions_total",
				Help: "Ledger transactions recorded, by type.",
			},
			[]string{"type"},
		),
		rejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corebank_rejections_total",
				Help: "Business-rule rejections, by reason.",
			},
			[]string{"reason"},
		),
		accrualItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corebank_accrual_items_total",
				Help: "Accrual job items, by phase and outcome.",
			},
			[]string{"phase", "outcome"},
		),
		accrualRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corebank_accrual_runs_total",
				Help: "Accrual job runs, by result.",
			},
			[]string{"result"},
		),
		storageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corebank_storage_errors_total",
				Help: "Retryable storage failures, by operation.",
			},
			[]string{"operation"},
		),
	}
}

// RecordOperationDuration records the duration of a ledger operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrTransaction counts one recorded ledger transaction.
func (m *Metrics) IncrTransaction(txType string) {
	m.transactionsTotal.WithLabelValues(txType).Inc()
}

// IncrRejection counts a business-rule rejection.
func (m *Metrics) IncrRejection(reason string) {
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}

// IncrAccrualItem counts one accrual item with its outcome
// (processed | skipped | failed).
func (m *Metrics) IncrAccrualItem(phase, outcome string) {
	m.accrualItems.WithLabelValues(phase, outcome).Inc()
}

// IncrAccrualRun counts a completed or aborted accrual run.
func (m *Metrics) IncrAccrualRun(result string) {
	m.accrualRuns.WithLabelValues(result).Inc()
}

// IncrStorageError counts a retryable storage failure.
func (m *Metrics) IncrStorageError(operation string) {
	m.storageErrors.WithLabelValues(operation).Inc()
}

// GetAccrualSnapshot returns cumulative accrual-job counters, summed over
// the four phases.
func (m *Metrics) GetAccrualSnapshot() *AccrualSnapshot {
	snap := &AccrualSnapshot{
		Runs: int64(getCounterValue(m.accrualRuns, "completed") +
			getCounterValue(m.accrualRuns, "aborted")),
	}
	for _, phase := range []string{"maturity", "savings_interest", "fd_interest", "rd_installment"} {
		snap.ItemsProcessed += int64(getCounterValue(m.accrualItems, phase, "processed"))
		snap.ItemsSkipped += int64(getCounterValue(m.accrualItems, phase, "skipped"))
		snap.ItemsFailed += int64(getCounterValue(m.accrualItems, phase, "failed"))
	}
	return snap
}

// getCounterValue extracts the current float64 value from a CounterVec for
// the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
