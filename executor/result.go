package executor

import (
	"fmt"

	"github.com/quasarlabs/sequencer/vm"
)

// TxResultKind tags a TxExecutionResult variant.
type TxResultKind uint8

const (
	// TxSuccess means the transaction applied and the speculative
	// block-tip dry run also succeeded.
	TxSuccess TxResultKind = iota

	// TxRejectedByVM means the transaction did not apply; state is rolled
	// back and the transaction must not be included in the batch.
	TxRejectedByVM

	// TxBootloaderOutOfGasForTx means the finalization wrapper ran out of
	// its fixed gas budget while processing this transaction; the caller
	// should retry the batch with fewer transactions.
	TxBootloaderOutOfGasForTx

	// TxBootloaderOutOfGasForBlockTip means the transaction applied but
	// the block-tip dry run ran out of the finalization gas budget; the
	// caller is expected to roll this transaction back and seal the batch
	// without it.
	TxBootloaderOutOfGasForBlockTip
)

func (k TxResultKind) String() string {
	switch k {
	case TxSuccess:
		return "success"
	case TxRejectedByVM:
		return "rejected by VM"
	case TxBootloaderOutOfGasForTx:
		return "bootloader out of gas for tx"
	case TxBootloaderOutOfGasForBlockTip:
		return "bootloader out of gas for block tip"
	default:
		return fmt.Sprintf("unknown tx result kind (%d)", uint8(k))
	}
}

// TxExecutionResult is the engine's verdict for one ExecuteTx command.
type TxExecutionResult struct {
	Kind TxResultKind

	// Populated when Kind is TxSuccess.
	TxOutcome           *vm.ExecutionOutcome
	TxMetrics           vm.ExecutionMetrics
	DryRunOutcome       *vm.ExecutionOutcome
	DryRunMetrics       vm.ExecutionMetrics
	CompressedBytecodes []vm.CompressedBytecode
	CallTrace           []vm.Call
	GasRemaining        uint64

	// Reason is set when Kind is TxRejectedByVM.
	Reason vm.HaltReason
}

// IsSuccess reports whether the transaction applied and the batch can keep
// it.
func (r TxExecutionResult) IsSuccess() bool {
	return r.Kind == TxSuccess
}

// RejectionReason returns the halt reason of a TxRejectedByVM result.
func (r TxExecutionResult) RejectionReason() (vm.HaltReason, bool) {
	if r.Kind != TxRejectedByVM {
		return vm.HaltUnknown, false
	}
	return r.Reason, true
}

func (r TxExecutionResult) String() string {
	if r.Kind == TxRejectedByVM {
		return fmt.Sprintf("%s: %s", r.Kind, r.Reason)
	}
	return r.Kind.String()
}

func successResult(
	txOutcome vm.ExecutionOutcome,
	dryRun vm.ExecutionOutcome,
	compressed []vm.CompressedBytecode,
	gasRemaining uint64,
) TxExecutionResult {
	return TxExecutionResult{
		Kind:                TxSuccess,
		TxOutcome:           &txOutcome,
		TxMetrics:           txOutcome.Metrics,
		DryRunOutcome:       &dryRun,
		DryRunMetrics:       dryRun.Metrics,
		CompressedBytecodes: compressed,
		CallTrace:           txOutcome.CallTrace,
		GasRemaining:        gasRemaining,
	}
}

func rejectedResult(reason vm.HaltReason) TxExecutionResult {
	return TxExecutionResult{Kind: TxRejectedByVM, Reason: reason}
}
