package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quasarlabs/sequencer/config"
	"github.com/quasarlabs/sequencer/storage"
	"github.com/quasarlabs/sequencer/types"
	"github.com/quasarlabs/sequencer/vm"
)

// newTestReceiver builds a receiver driven directly, without the command
// loop, so that the fatal paths can be asserted with require.Panics.
func newTestReceiver(t *testing.T, cfg config.ExecutorConfig, batchGas uint64) (*commandReceiver, *vm.DummyVM, types.BatchEnv) {
	t.Helper()

	kv := storage.NewInMemoryKVStore()
	t.Cleanup(func() { _ = kv.Close() })

	view := storage.NewView(kv)
	env := types.NewBatchEnv(1, time.Now(), batchGas)
	machine := vm.NewDummyVM(env, view)
	receiver := &commandReceiver{
		cfg:     cfg,
		logger:  testLogger(t),
		metrics: NopMetrics(),
		machine: machine,
		view:    view,
	}
	return receiver, machine, env
}

func TestDryRunRevertIsFatal(t *testing.T) {
	receiver, machine, _ := newTestReceiver(t, config.DefaultExecutorConfig(), testBatchGas)
	machine.ForceBlockTipRevert()

	require.Panics(t, func() {
		receiver.executeTx(testTx("doomed", 100_000))
	})
}

func TestFinalizationRevertIsFatal(t *testing.T) {
	receiver, machine, env := newTestReceiver(t, config.DefaultExecutorConfig(), testBatchGas)
	machine.ForceBlockTipRevert()

	require.Panics(t, func() {
		receiver.finishBatch(env)
	})
}

func TestRollbackWithoutTransactionIsFatal(t *testing.T) {
	receiver, _, _ := newTestReceiver(t, config.DefaultExecutorConfig(), testBatchGas)

	require.Panics(t, func() {
		receiver.rollbackLastTx()
	})
}

func TestSnapshotAccountingAcrossCommands(t *testing.T) {
	receiver, machine, env := newTestReceiver(t, config.DefaultExecutorConfig(), testBatchGas)

	res := receiver.executeTx(testTx("first", 100_000))
	require.True(t, res.IsSuccess())
	require.Equal(t, 1, machine.SnapshotDepth())

	// The next transaction commits the previous pre-attempt snapshot
	// before pushing its own; depth never grows past one between commands.
	res = receiver.executeTx(testTx("second", 100_000))
	require.True(t, res.IsSuccess())
	require.Equal(t, 1, machine.SnapshotDepth())

	fin := receiver.finishBatch(env)
	require.Equal(t, vm.ResultSuccess, fin.BlockTip.Result.Kind)
	require.Zero(t, machine.SnapshotDepth())
}
