// Package vm defines the execution capability consumed by the batch
// execution engine: an opaque, stateful virtual-machine handle bound to one
// batch, together with its outcome types.
//
// The engine drives a VM exclusively through this interface; the instruction
// semantics, gas accounting internals and commitment scheme behind it are
// out of scope. DummyVM provides a deterministic in-memory implementation
// for tests and tooling.
package vm

import (
	"errors"

	"github.com/quasarlabs/sequencer/types"
)

// ErrBytecodeCompressionFailed is the publish result returned by Execute
// when the transaction's declared bytecodes are incompatible with
// compressed publication. It says nothing about the execution verdict
// itself.
var ErrBytecodeCompressionFailed = errors.New("bytecode compression failed")

// ExecuteOptions controls one transaction execution.
type ExecuteOptions struct {
	// CollectTraces attaches a call tracer to the execution.
	CollectTraces bool
	// WithCompression attempts to publish the transaction's factory
	// dependencies in compressed form.
	WithCompression bool
}

// VM is the execution capability bound to exactly one batch.
//
// Requirements on implementations:
//   - Snapshots are strictly LIFO. Rolling back to the latest snapshot must
//     leave VM and storage state indistinguishable from the moment the
//     snapshot was made, including the effects of finalization-mode runs.
//   - Execute returns ErrBytecodeCompressionFailed as the publish result
//     when compressed publication is incompatible with the transaction;
//     the accompanying outcome is then not authoritative.
//   - A VM handle is owned by a single goroutine and is not safe for
//     concurrent use.
type VM interface {
	// Execute applies one transaction. The returned error is the bytecode
	// publish result, not an execution failure: execution verdicts are
	// carried in the outcome.
	Execute(tx *types.Transaction, opts ExecuteOptions) (ExecutionOutcome, error)

	// MakeSnapshot pushes a checkpoint of VM and storage-view state.
	MakeSnapshot()

	// RollbackToLatestSnapshot pops the latest checkpoint and restores it.
	RollbackToLatestSnapshot()

	// PopSnapshotNoRollback pops the latest checkpoint, keeping all
	// effects since it was made.
	PopSnapshotNoRollback()

	// StartNewBlock advances the intra-batch block boundary.
	StartNewBlock(env types.BlockEnv)

	// ExecuteBlockTip runs the VM in finalization mode, executing the
	// per-batch bookkeeping of the bootloader. Used both speculatively
	// (under a snapshot) and for the real sealing run.
	ExecuteBlockTip() ExecutionOutcome

	// GasRemaining reports the remaining bootloader gas budget.
	GasRemaining() uint64

	// LastTxCompressedBytecodes returns the compressed-bytecode metadata
	// published by the most recently executed transaction.
	LastTxCompressedBytecodes() []CompressedBytecode
}
