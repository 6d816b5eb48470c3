package vm

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/quasarlabs/sequencer/storage"
	"github.com/quasarlabs/sequencer/types"
)

// DefaultBlockTipGas is the bootloader gas reserved by DummyVM for one
// finalization-mode run.
const DefaultBlockTipGas = 50_000

// TxBehavior scripts how DummyVM treats one transaction. The zero value is
// a plain successful execution consuming the declared gas limit.
type TxBehavior struct {
	// GasCost overrides the bootloader gas consumed; 0 means the declared
	// gas limit.
	GasCost uint64
	// Revert makes the execution revert with the given reason.
	Revert string
	// Halt makes the execution halt with the given reason.
	Halt HaltReason
	// FailCompression makes compressed bytecode publication incompatible
	// with this transaction.
	FailCompression bool
	// Output is the return data of a successful execution.
	Output []byte
}

// DummyVM is a deterministic in-memory implementation of VM used by tests
// and the demo binary. It models execution as keyed writes against a
// storage view, metered against the batch's bootloader gas budget.
type DummyVM struct {
	env   types.BatchEnv
	block types.BlockEnv
	view  *storage.View

	gasRemaining uint64
	blockTipGas  uint64

	behaviors      map[types.Hash]TxBehavior
	lastCompressed []CompressedBytecode
	appliedTxs     uint64

	// forceBlockTipRevert breaks the fee-model invariant on purpose, for
	// tests of the fatal finalization path.
	forceBlockTipRevert bool

	snaps []dummySnapshot
}

type dummySnapshot struct {
	gasRemaining   uint64
	blockTipGas    uint64
	block          types.BlockEnv
	appliedTxs     uint64
	lastCompressed []CompressedBytecode
}

var _ VM = &DummyVM{}

// NewDummyVM creates a dummy VM bound to the given batch environment and
// storage view. The bootloader gas budget is taken from the environment.
func NewDummyVM(env types.BatchEnv, view *storage.View) *DummyVM {
	return &DummyVM{
		env:          env,
		block:        env.FirstBlock,
		view:         view,
		gasRemaining: env.BootloaderGasLimit,
		blockTipGas:  DefaultBlockTipGas,
		behaviors:    make(map[types.Hash]TxBehavior),
	}
}

// SetBehavior scripts the behavior of one transaction.
func (d *DummyVM) SetBehavior(tx *types.Transaction, b TxBehavior) {
	d.behaviors[tx.Hash()] = b
}

// SetBlockTipGas overrides the gas reserved for one finalization run.
func (d *DummyVM) SetBlockTipGas(gas uint64) {
	d.blockTipGas = gas
}

// ForceBlockTipRevert makes every finalization run revert. Test hook for
// the fatal path.
func (d *DummyVM) ForceBlockTipRevert() {
	d.forceBlockTipRevert = true
}

// SnapshotDepth returns the number of unresolved snapshots.
func (d *DummyVM) SnapshotDepth() int {
	return len(d.snaps)
}

// AppliedTxs returns the number of transactions currently applied.
func (d *DummyVM) AppliedTxs() uint64 {
	return d.appliedTxs
}

// Execute implements VM.
func (d *DummyVM) Execute(tx *types.Transaction, opts ExecuteOptions) (ExecutionOutcome, error) {
	b := d.behaviors[tx.Hash()]
	cost := b.GasCost
	if cost == 0 {
		cost = tx.GasLimit
	}

	if b.Halt != HaltUnknown {
		return ExecutionOutcome{Result: Halted(b.Halt)}, nil
	}
	if cost > d.gasRemaining {
		return ExecutionOutcome{Result: Halted(HaltBootloaderOutOfGas)}, nil
	}

	// A read of the initiator's nonce slot, so that every execution
	// touches storage and shows up in the witness input.
	hash := tx.Hash()
	if _, err := d.view.Get(nonceKey(hash)); err != nil {
		return ExecutionOutcome{}, err
	}

	if b.Revert != "" {
		d.gasRemaining -= cost
		return ExecutionOutcome{
			Result:    Revert(b.Revert),
			Metrics:   ExecutionMetrics{GasUsed: cost, StorageReads: 1},
			CallTrace: d.trace(tx, cost, b.Revert, opts),
		}, nil
	}

	d.gasRemaining -= cost
	d.view.Set(txKey(hash), tx.Payload)
	writes := uint64(1)
	for _, dep := range tx.FactoryDeps {
		d.view.Set(codeKey(dep), dep)
		writes++
	}
	d.appliedTxs++

	d.lastCompressed = nil
	if opts.WithCompression {
		if b.FailCompression {
			return ExecutionOutcome{
				Result:  Success(b.Output),
				Metrics: ExecutionMetrics{GasUsed: cost, StorageReads: 1, StorageWrites: writes},
			}, ErrBytecodeCompressionFailed
		}
		for _, dep := range tx.FactoryDeps {
			d.lastCompressed = append(d.lastCompressed, CompressedBytecode{
				Hash:           sha256.Sum256(dep),
				OriginalSize:   len(dep),
				CompressedSize: len(dep)/2 + 1,
			})
		}
	}

	return ExecutionOutcome{
		Result: Success(b.Output),
		Metrics: ExecutionMetrics{
			GasUsed:          cost,
			PubdataPublished: uint64(len(tx.Payload)),
			StorageReads:     1,
			StorageWrites:    writes,
		},
		CallTrace: d.trace(tx, cost, "", opts),
	}, nil
}

// MakeSnapshot implements VM.
func (d *DummyVM) MakeSnapshot() {
	d.view.Snapshot()
	d.snaps = append(d.snaps, dummySnapshot{
		gasRemaining:   d.gasRemaining,
		blockTipGas:    d.blockTipGas,
		block:          d.block,
		appliedTxs:     d.appliedTxs,
		lastCompressed: d.lastCompressed,
	})
}

// RollbackToLatestSnapshot implements VM.
func (d *DummyVM) RollbackToLatestSnapshot() {
	s := d.popSnap()
	d.view.RollbackSnapshot()
	d.gasRemaining = s.gasRemaining
	d.blockTipGas = s.blockTipGas
	d.block = s.block
	d.appliedTxs = s.appliedTxs
	d.lastCompressed = s.lastCompressed
}

// PopSnapshotNoRollback implements VM.
func (d *DummyVM) PopSnapshotNoRollback() {
	d.popSnap()
	d.view.CommitSnapshot()
}

func (d *DummyVM) popSnap() dummySnapshot {
	if len(d.snaps) == 0 {
		panic("dummy vm: no snapshot to resolve")
	}
	s := d.snaps[len(d.snaps)-1]
	d.snaps = d.snaps[:len(d.snaps)-1]
	return s
}

// StartNewBlock implements VM.
func (d *DummyVM) StartNewBlock(env types.BlockEnv) {
	d.block = env
}

// ExecuteBlockTip implements VM.
func (d *DummyVM) ExecuteBlockTip() ExecutionOutcome {
	if d.forceBlockTipRevert {
		return ExecutionOutcome{Result: Revert("forced block tip revert")}
	}
	if d.blockTipGas > d.gasRemaining {
		return ExecutionOutcome{Result: Halted(HaltBootloaderOutOfGas)}
	}
	d.gasRemaining -= d.blockTipGas

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], d.appliedTxs)
	d.view.Set(blockTipKey(d.env.Number), buf[:])

	return ExecutionOutcome{
		Result:  Success(buf[:]),
		Metrics: ExecutionMetrics{GasUsed: d.blockTipGas, StorageWrites: 1},
	}
}

// GasRemaining implements VM.
func (d *DummyVM) GasRemaining() uint64 {
	return d.gasRemaining
}

// LastTxCompressedBytecodes implements VM.
func (d *DummyVM) LastTxCompressedBytecodes() []CompressedBytecode {
	return d.lastCompressed
}

func (d *DummyVM) trace(tx *types.Transaction, gasUsed uint64, revertReason string, opts ExecuteOptions) []Call {
	if !opts.CollectTraces {
		return nil
	}
	return []Call{{
		Type:         "Call",
		Input:        tx.Payload,
		GasUsed:      gasUsed,
		RevertReason: revertReason,
	}}
}

func txKey(h types.Hash) []byte {
	return []byte("tx/" + h.Hex())
}

func nonceKey(h types.Hash) []byte {
	return []byte("nonce/" + h.Hex())
}

func codeKey(dep []byte) []byte {
	sum := sha256.Sum256(dep)
	return append([]byte("code/"), sum[:]...)
}

func blockTipKey(batch uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], batch)
	return append([]byte("blocktip/"), buf[:]...)
}
