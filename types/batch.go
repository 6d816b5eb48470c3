package types

import "time"

// BatchEnv fixes the deterministic execution context for one batch. It is
// created by the caller before the engine is constructed and never mutated.
type BatchEnv struct {
	// Number is the sequential batch number.
	Number uint64

	// Timestamp is the batch timestamp, seconds since epoch.
	Timestamp uint64

	// L1GasPrice and FairL2GasPrice are the fee inputs the VM prices
	// transactions against.
	L1GasPrice     uint64
	FairL2GasPrice uint64

	// BootloaderGasLimit is the fixed gas budget of the finalization
	// wrapper for the whole batch. Transactions and the block tip draw
	// from this budget; exhausting it is the only legitimate way for
	// finalization to fail.
	BootloaderGasLimit uint64

	// FirstBlock describes the first intra-batch block boundary.
	FirstBlock BlockEnv
}

// BlockEnv describes one intra-batch block boundary.
type BlockEnv struct {
	Number    uint64
	Timestamp uint64
}

// NewBatchEnv returns a batch environment for the given batch number with
// the timestamp rounded to whole seconds.
func NewBatchEnv(number uint64, ts time.Time, bootloaderGasLimit uint64) BatchEnv {
	return BatchEnv{
		Number:             number,
		Timestamp:          uint64(ts.Unix()),
		BootloaderGasLimit: bootloaderGasLimit,
		FirstBlock: BlockEnv{
			Number:    1,
			Timestamp: uint64(ts.Unix()),
		},
	}
}
