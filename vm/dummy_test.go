package vm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quasarlabs/sequencer/storage"
	"github.com/quasarlabs/sequencer/types"
)

func newTestVM(t *testing.T, batchGas uint64) (*DummyVM, *storage.View) {
	t.Helper()
	kv := storage.NewInMemoryKVStore()
	t.Cleanup(func() { _ = kv.Close() })
	view := storage.NewView(kv)
	env := types.NewBatchEnv(7, time.Now(), batchGas)
	return NewDummyVM(env, view), view
}

func TestDummyVMExecuteAppliesWrites(t *testing.T) {
	machine, view := newTestVM(t, 1_000_000)
	tx := &types.Transaction{Payload: []byte("payload"), GasLimit: 100_000}

	outcome, err := machine.Execute(tx, ExecuteOptions{})
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, outcome.Result.Kind)
	require.Equal(t, uint64(900_000), machine.GasRemaining())
	require.Contains(t, view.Diff(), "tx/"+tx.Hash().Hex())
}

func TestDummyVMScriptedBehaviors(t *testing.T) {
	testCases := []struct {
		name     string
		behavior TxBehavior
		kind     ResultKind
		halt     HaltReason
	}{
		{name: "revert", behavior: TxBehavior{Revert: "nope"}, kind: ResultRevert},
		{name: "halt", behavior: TxBehavior{Halt: HaltValidationFailed}, kind: ResultHalt, halt: HaltValidationFailed},
		{name: "success", behavior: TxBehavior{Output: []byte("ok")}, kind: ResultSuccess},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			machine, _ := newTestVM(t, 1_000_000)
			tx := &types.Transaction{Payload: []byte(tc.name), GasLimit: 50_000}
			machine.SetBehavior(tx, tc.behavior)

			outcome, err := machine.Execute(tx, ExecuteOptions{})
			require.NoError(t, err)
			require.Equal(t, tc.kind, outcome.Result.Kind)
			if tc.halt != HaltUnknown {
				require.Equal(t, tc.halt, outcome.Result.HaltReason)
			}
		})
	}
}

func TestDummyVMOutOfGas(t *testing.T) {
	machine, _ := newTestVM(t, 10_000)
	tx := &types.Transaction{Payload: []byte("hungry"), GasLimit: 20_000}

	outcome, err := machine.Execute(tx, ExecuteOptions{})
	require.NoError(t, err)
	require.Equal(t, ResultHalt, outcome.Result.Kind)
	require.Equal(t, HaltBootloaderOutOfGas, outcome.Result.HaltReason)
	// Nothing was consumed.
	require.Equal(t, uint64(10_000), machine.GasRemaining())
}

func TestDummyVMSnapshotRestoresGasAndState(t *testing.T) {
	machine, view := newTestVM(t, 1_000_000)
	tx := &types.Transaction{Payload: []byte("undone"), GasLimit: 100_000}

	machine.MakeSnapshot()
	_, err := machine.Execute(tx, ExecuteOptions{})
	require.NoError(t, err)
	require.Equal(t, uint64(1), machine.AppliedTxs())

	machine.RollbackToLatestSnapshot()
	require.Equal(t, uint64(1_000_000), machine.GasRemaining())
	require.Zero(t, machine.AppliedTxs())
	require.Empty(t, view.Diff())
	require.Zero(t, machine.SnapshotDepth())
}

func TestDummyVMCompression(t *testing.T) {
	machine, _ := newTestVM(t, 1_000_000)
	dep := []byte("bytecode")
	tx := &types.Transaction{Payload: []byte("deploy"), GasLimit: 100_000, FactoryDeps: [][]byte{dep}}

	outcome, err := machine.Execute(tx, ExecuteOptions{WithCompression: true})
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, outcome.Result.Kind)
	require.Len(t, machine.LastTxCompressedBytecodes(), 1)
	require.Equal(t, len(dep), machine.LastTxCompressedBytecodes()[0].OriginalSize)
}

func TestDummyVMCompressionFailure(t *testing.T) {
	machine, _ := newTestVM(t, 1_000_000)
	tx := &types.Transaction{Payload: []byte("deploy"), GasLimit: 100_000, FactoryDeps: [][]byte{[]byte("odd")}}
	machine.SetBehavior(tx, TxBehavior{FailCompression: true})

	_, err := machine.Execute(tx, ExecuteOptions{WithCompression: true})
	require.ErrorIs(t, err, ErrBytecodeCompressionFailed)

	// Without compression the same transaction publishes fine.
	machine2, _ := newTestVM(t, 1_000_000)
	machine2.SetBehavior(tx, TxBehavior{FailCompression: true})
	_, err = machine2.Execute(tx, ExecuteOptions{WithCompression: false})
	require.NoError(t, err)
}

func TestDummyVMBlockTip(t *testing.T) {
	machine, view := newTestVM(t, 100_000)

	outcome := machine.ExecuteBlockTip()
	require.Equal(t, ResultSuccess, outcome.Result.Kind)
	require.Equal(t, uint64(100_000-DefaultBlockTipGas), machine.GasRemaining())
	require.NotEmpty(t, view.Diff())

	// Exhaust the budget; the tip can only halt with out-of-gas.
	machine.SetBlockTipGas(200_000)
	outcome = machine.ExecuteBlockTip()
	require.Equal(t, ResultHalt, outcome.Result.Kind)
	require.Equal(t, HaltBootloaderOutOfGas, outcome.Result.HaltReason)
}

func TestDummyVMCollectTraces(t *testing.T) {
	machine, _ := newTestVM(t, 1_000_000)
	tx := &types.Transaction{Payload: []byte("traced"), GasLimit: 100_000}

	outcome, err := machine.Execute(tx, ExecuteOptions{CollectTraces: true})
	require.NoError(t, err)
	require.Len(t, outcome.CallTrace, 1)
	require.Equal(t, uint64(100_000), outcome.CallTrace[0].GasUsed)

	outcome, err = machine.Execute(&types.Transaction{Payload: []byte("untraced"), GasLimit: 100_000}, ExecuteOptions{})
	require.NoError(t, err)
	require.Empty(t, outcome.CallTrace)
}
