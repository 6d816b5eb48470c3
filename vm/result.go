package vm

import (
	"fmt"

	"github.com/quasarlabs/sequencer/storage"
)

// HaltReason explains why the VM halted a transaction or the bootloader
// without applying it.
type HaltReason uint8

const (
	// HaltUnknown is the zero value; it never appears in a well-formed halt.
	HaltUnknown HaltReason = iota
	// HaltValidationFailed means the transaction failed account validation.
	HaltValidationFailed
	// HaltPayForTxFailed means the initiator could not cover the fee.
	HaltPayForTxFailed
	// HaltBootloaderOutOfGas means the finalization wrapper exhausted its
	// fixed gas budget.
	HaltBootloaderOutOfGas
	// HaltTooBigGasLimit means the declared gas limit exceeds the allowed
	// ceiling.
	HaltTooBigGasLimit
	// HaltFailedToPublishCompressedBytecodes means the transaction's novel
	// bytecodes could not be published in compressed form.
	HaltFailedToPublishCompressedBytecodes
)

func (r HaltReason) String() string {
	switch r {
	case HaltValidationFailed:
		return "validation failed"
	case HaltPayForTxFailed:
		return "failed to pay for transaction"
	case HaltBootloaderOutOfGas:
		return "bootloader out of gas"
	case HaltTooBigGasLimit:
		return "transaction gas limit too big"
	case HaltFailedToPublishCompressedBytecodes:
		return "failed to publish compressed bytecodes"
	default:
		return fmt.Sprintf("unknown halt reason (%d)", uint8(r))
	}
}

// ResultKind tags an ExecutionResult variant.
type ResultKind uint8

const (
	// ResultSuccess means execution completed; the transaction is
	// includable.
	ResultSuccess ResultKind = iota
	// ResultRevert means execution reverted. Reverted transactions are
	// still includable: the initiator pays for the consumed gas.
	ResultRevert
	// ResultHalt means execution was cut short; the transaction is not
	// includable.
	ResultHalt
)

// ExecutionResult is the verdict of one VM invocation.
type ExecutionResult struct {
	Kind ResultKind

	// Output holds return data on success.
	Output []byte
	// RevertReason is set when Kind is ResultRevert.
	RevertReason string
	// HaltReason is set when Kind is ResultHalt.
	HaltReason HaltReason
}

// Success builds a successful result.
func Success(output []byte) ExecutionResult {
	return ExecutionResult{Kind: ResultSuccess, Output: output}
}

// Revert builds a reverted result.
func Revert(reason string) ExecutionResult {
	return ExecutionResult{Kind: ResultRevert, RevertReason: reason}
}

// Halted builds a halted result.
func Halted(reason HaltReason) ExecutionResult {
	return ExecutionResult{Kind: ResultHalt, HaltReason: reason}
}

// Failed reports whether the invocation reverted or halted.
func (r ExecutionResult) Failed() bool {
	return r.Kind != ResultSuccess
}

func (r ExecutionResult) String() string {
	switch r.Kind {
	case ResultSuccess:
		return "success"
	case ResultRevert:
		return fmt.Sprintf("revert: %s", r.RevertReason)
	case ResultHalt:
		return fmt.Sprintf("halt: %s", r.HaltReason)
	default:
		return fmt.Sprintf("unknown result kind (%d)", uint8(r.Kind))
	}
}

// ExecutionMetrics describes the measurable footprint of one VM invocation.
type ExecutionMetrics struct {
	GasUsed              uint64
	ComputationalGasUsed uint64
	PubdataPublished     uint64
	StorageReads         uint64
	StorageWrites        uint64
}

// Call is one node of a call trace.
type Call struct {
	Type         string
	Input        []byte
	Output       []byte
	GasUsed      uint64
	RevertReason string
	Calls        []Call
}

// CompressedBytecode describes one bytecode published in compressed form
// alongside the batch.
type CompressedBytecode struct {
	Hash           [32]byte
	OriginalSize   int
	CompressedSize int
}

// ExecutionOutcome bundles the verdict of one VM invocation with its
// measurements and the optional call trace.
type ExecutionOutcome struct {
	Result    ExecutionResult
	Metrics   ExecutionMetrics
	CallTrace []Call
}

// FinishedBatch is the artifact of sealing a batch: the result of the real
// block-tip finalization run, plus the captured witness state when the
// engine is configured to materialize it.
type FinishedBatch struct {
	BlockTip ExecutionOutcome
	Witness  *storage.WitnessState
}
