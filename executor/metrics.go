package executor

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "batch_executor"
)

// Execution stages reported on the tx_execution_seconds histogram.
const (
	stageExecution             = "execution"
	stageTxRollback            = "tx_rollback"
	stageDryRunMakeSnapshot    = "dry_run_make_snapshot"
	stageDryRunExecuteBlockTip = "dry_run_execute_block_tip"
	stageDryRunRollback        = "dry_run_rollback"
)

// Storage interaction kinds reported on the storage_interaction_seconds
// histogram.
const (
	interactionGetValue = "get_value"
	interactionSetValue = "set_value"
)

// Metrics contains metrics exposed by this package. The engine owns no
// global metric state; a Metrics value is injected at construction.
type Metrics struct {
	// Time spent in each stage of transaction processing.
	TxExecutionDuration metrics.Histogram
	// Total number of transactions processed.
	ProcessedTxs metrics.Counter
	// Number of transactions rejected by the VM.
	RejectedTxs metrics.Counter
	// Number of batches sealed.
	SealedBatches metrics.Counter
	// Time the storage view spent serving the VM, per interaction kind,
	// observed once per batch after the VM releases the view.
	StorageInteractionDuration metrics.Histogram
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		TxExecutionDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "tx_execution_seconds",
			Help:      "Time spent in each stage of transaction processing.",
		}, append(append([]string{}, labels...), "stage")).With(labelsAndValues...),
		ProcessedTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "processed_txs",
			Help:      "Total number of transactions processed.",
		}, labels).With(labelsAndValues...),
		RejectedTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "rejected_txs",
			Help:      "Number of transactions rejected by the VM.",
		}, labels).With(labelsAndValues...),
		SealedBatches: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "sealed_batches",
			Help:      "Number of batches sealed.",
		}, labels).With(labelsAndValues...),
		StorageInteractionDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "storage_interaction_seconds",
			Help:      "Time the storage view spent serving the VM, per batch.",
		}, append(append([]string{}, labels...), "interaction")).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		TxExecutionDuration:        discard.NewHistogram(),
		ProcessedTxs:               discard.NewCounter(),
		RejectedTxs:                discard.NewCounter(),
		SealedBatches:              discard.NewCounter(),
		StorageInteractionDuration: discard.NewHistogram(),
	}
}
