package executor

import (
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/quasarlabs/sequencer/config"
	"github.com/quasarlabs/sequencer/storage"
	"github.com/quasarlabs/sequencer/types"
	"github.com/quasarlabs/sequencer/vm"
)

// commandReceiver is the batch-scoped engine loop. Upon launch it owns the
// VM and the storage view, and keeps invoking the commands sent to it one by
// one until the batch is finished.
//
// One commandReceiver can execute exactly one batch, so once the batch is
// sealed, a new commandReceiver must be constructed.
type commandReceiver struct {
	cfg      config.ExecutorConfig
	commands <-chan command
	quit     <-chan struct{}
	logger   logging.EventLogger
	metrics  *Metrics

	machine vm.VM
	view    *storage.View

	// snapshotDepth counts unresolved VM snapshots; txSnapshot marks
	// whether the pre-attempt snapshot of the last applied transaction is
	// still unresolved (the one RollbackLastTx resolves).
	snapshotDepth int
	txSnapshot    bool
}

func (r *commandReceiver) run(env types.BatchEnv) {
	r.logger.Info("starting batch execution", "batch", env.Number)

	for {
		var cmd command
		select {
		case cmd = <-r.commands:
		case <-r.quit:
			// The caller closes the handle in response to a stop signal,
			// so exiting mid-batch is fine; the unfinished batch is never
			// persisted.
			r.logger.Info("batch executor exited with an unfinished batch", "batch", env.Number)
			return
		}

		switch c := cmd.(type) {
		case executeTxCommand:
			c.resp <- r.executeTx(c.tx)
		case rollbackLastTxCommand:
			r.rollbackLastTx()
			c.resp <- struct{}{}
		case startNextBlockCommand:
			r.machine.StartNewBlock(c.env)
			c.resp <- struct{}{}
		case finishBatchCommand:
			c.resp <- r.finishBatch(env)

			// The view cannot be inspected while the VM may still be
			// borrowing it, so this is the only point at which storage
			// metrics can be observed.
			m := r.view.Metrics()
			r.metrics.StorageInteractionDuration.
				With("interaction", interactionGetValue).Observe(m.TimeSpentOnGet.Seconds())
			r.metrics.StorageInteractionDuration.
				With("interaction", interactionSetValue).Observe(m.TimeSpentOnSet.Seconds())
			return
		default:
			panic(fmt.Sprintf("batch executor: unknown command %T", cmd))
		}
	}
}

func (r *commandReceiver) executeTx(tx *types.Transaction) TxExecutionResult {
	// Once the next command arrives, the previous transaction can no
	// longer be rolled back; commit its pre-attempt snapshot so the stack
	// stays strictly LIFO and bounded.
	r.commitTxSnapshot()

	// Save the pre-attempt snapshot.
	r.makeSnapshot()
	r.txSnapshot = true

	// Reject transactions with too big gas limit. They are also rejected
	// upstream, but the engine enforces the ceiling independently in case
	// such a tx somehow makes it into the batch.
	if tx.GasLimit > r.cfg.MaxAllowedTxGasLimit {
		r.logger.Warn("found tx with too big gas limit", "hash", tx.Hash(), "gas_limit", tx.GasLimit)
		r.rollbackTxSnapshot()
		r.metrics.RejectedTxs.Add(1)
		return rejectedResult(vm.HaltTooBigGasLimit)
	}

	start := time.Now()
	var outcome vm.ExecutionOutcome
	var compressed []vm.CompressedBytecode
	if r.cfg.OptionalBytecodeCompression {
		outcome, compressed = r.executeTxWithOptionalCompression(tx)
	} else {
		outcome, compressed = r.executeTxOnce(tx)
	}
	r.metrics.TxExecutionDuration.With("stage", stageExecution).Observe(time.Since(start).Seconds())
	r.metrics.ProcessedTxs.Add(1)

	if outcome.Result.Kind == vm.ResultHalt {
		// The transaction did not apply; restore the pre-attempt state
		// before reporting it.
		r.rollbackTxSnapshot()
		r.metrics.RejectedTxs.Add(1)
		if outcome.Result.HaltReason == vm.HaltBootloaderOutOfGas {
			return TxExecutionResult{Kind: TxBootloaderOutOfGasForTx}
		}
		return rejectedResult(outcome.Result.HaltReason)
	}

	gasRemaining := r.machine.GasRemaining()

	dryRun := r.dryRunBlockTip()
	switch dryRun.Result.Kind {
	case vm.ResultSuccess:
		return successResult(outcome, dryRun, compressed, gasRemaining)
	case vm.ResultHalt:
		if dryRun.Result.HaltReason == vm.HaltBootloaderOutOfGas {
			// The transaction itself is valid, but there is no room left
			// to finalize the batch with it included. The caller rolls it
			// back and seals without it.
			return TxExecutionResult{Kind: TxBootloaderOutOfGasForBlockTip}
		}
	}
	panic(fmt.Sprintf(
		"VM must not fail when finalizing block (except bootloader out of gas): %s", dryRun.Result,
	))
}

// executeTxWithOptionalCompression implements the compression retry
// protocol. The space for compressed bytecodes is limited and transactions
// do not pay for taking it, so a transaction must not pollute that space
// with bytecodes that end up unpublished: it is first executed with
// compression, and re-executed without if publication fails.
func (r *commandReceiver) executeTxWithOptionalCompression(tx *types.Transaction) (vm.ExecutionOutcome, []vm.CompressedBytecode) {
	r.makeSnapshot()

	opts := vm.ExecuteOptions{CollectTraces: r.cfg.SaveCallTraces, WithCompression: true}
	outcome, publishErr := r.machine.Execute(tx, opts)
	if publishErr == nil && outcome.Result.Kind != vm.ResultHalt {
		compressed := r.machine.LastTxCompressedBytecodes()
		r.popSnapshot()
		return outcome, compressed
	}
	r.rollbackSnapshot()

	opts.WithCompression = false
	outcome, publishErr = r.machine.Execute(tx, opts)
	if publishErr != nil {
		panic("compression can't fail if we don't apply it")
	}
	return outcome, r.machine.LastTxCompressedBytecodes()
}

// executeTxOnce executes with compression attempted for measurement only:
// when publication fails the transaction is rejected outright, so the
// initiator is not charged for a transaction whose bytecode could not be
// published.
func (r *commandReceiver) executeTxOnce(tx *types.Transaction) (vm.ExecutionOutcome, []vm.CompressedBytecode) {
	opts := vm.ExecuteOptions{CollectTraces: r.cfg.SaveCallTraces, WithCompression: true}
	outcome, publishErr := r.machine.Execute(tx, opts)
	if publishErr != nil {
		outcome.Result = vm.Halted(vm.HaltFailedToPublishCompressedBytecodes)
		outcome.CallTrace = nil
		return outcome, nil
	}
	return outcome, r.machine.LastTxCompressedBytecodes()
}

// dryRunBlockTip speculatively runs batch finalization to check that the
// batch can still be sealed, then rolls the run back regardless of outcome.
func (r *commandReceiver) dryRunBlockTip() vm.ExecutionOutcome {
	start := time.Now()
	r.makeSnapshot()
	r.observeStage(stageDryRunMakeSnapshot, start)

	start = time.Now()
	outcome := r.machine.ExecuteBlockTip()
	r.observeStage(stageDryRunExecuteBlockTip, start)

	start = time.Now()
	r.rollbackSnapshot()
	r.observeStage(stageDryRunRollback, start)

	return outcome
}

func (r *commandReceiver) rollbackLastTx() {
	if !r.txSnapshot {
		panic("batch executor: no transaction to roll back")
	}
	start := time.Now()
	r.rollbackTxSnapshot()
	r.observeStage(stageTxRollback, start)
}

func (r *commandReceiver) finishBatch(env types.BatchEnv) *vm.FinishedBatch {
	// Sealing makes the last transaction final.
	r.commitTxSnapshot()
	if r.snapshotDepth != 0 {
		panic(fmt.Sprintf("batch executor: %d unresolved snapshots at batch seal", r.snapshotDepth))
	}

	// The VM paused right after the last transaction; finalization runs
	// the remaining per-batch bookkeeping, for real this time.
	tip := r.machine.ExecuteBlockTip()
	if tip.Result.Failed() {
		// Every included transaction passed a block-tip dry run, so the
		// real run diverging is a correctness bug, not a recoverable
		// condition.
		panic(fmt.Sprintf("VM must not fail when finalizing block: %s", tip.Result))
	}

	fin := &vm.FinishedBatch{BlockTip: tip}
	if r.cfg.CaptureWitness {
		fin.Witness = r.view.WitnessState()
	}
	r.metrics.SealedBatches.Add(1)
	r.logger.Info("batch sealed", "batch", env.Number)
	return fin
}

func (r *commandReceiver) makeSnapshot() {
	r.machine.MakeSnapshot()
	r.snapshotDepth++
}

func (r *commandReceiver) rollbackSnapshot() {
	if r.snapshotDepth == 0 {
		panic("batch executor: rollback without a snapshot")
	}
	r.machine.RollbackToLatestSnapshot()
	r.snapshotDepth--
}

func (r *commandReceiver) popSnapshot() {
	if r.snapshotDepth == 0 {
		panic("batch executor: pop without a snapshot")
	}
	r.machine.PopSnapshotNoRollback()
	r.snapshotDepth--
}

func (r *commandReceiver) commitTxSnapshot() {
	if r.txSnapshot {
		r.popSnapshot()
		r.txSnapshot = false
	}
}

func (r *commandReceiver) rollbackTxSnapshot() {
	if !r.txSnapshot {
		panic("batch executor: no pre-attempt snapshot to roll back")
	}
	r.rollbackSnapshot()
	r.txSnapshot = false
}

func (r *commandReceiver) observeStage(stage string, start time.Time) {
	r.metrics.TxExecutionDuration.With("stage", stage).Observe(time.Since(start).Seconds())
}
