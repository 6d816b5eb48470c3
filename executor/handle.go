package executor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/quasarlabs/sequencer/types"
	"github.com/quasarlabs/sequencer/vm"
)

// Handle is the caller's side of one batch engine: typed command senders
// plus a join handle for the background execution.
//
// The caller is fully serialized against the engine: at most one command is
// in flight, and each method blocks until the engine's reply. Methods must
// not be called concurrently with each other or with Close.
type Handle struct {
	commands  chan command
	quit      chan struct{}
	done      <-chan struct{}
	closeOnce sync.Once
	inFlight  atomic.Bool
}

// ExecuteTx applies one transaction and reports the engine's verdict.
func (h *Handle) ExecuteTx(ctx context.Context, tx *types.Transaction) (TxExecutionResult, error) {
	resp := make(chan TxExecutionResult, 1)
	return roundTrip(ctx, h, executeTxCommand{tx: tx, resp: resp}, resp)
}

// RollbackLastTx undoes the most recently applied transaction.
func (h *Handle) RollbackLastTx(ctx context.Context) error {
	resp := make(chan struct{}, 1)
	_, err := roundTrip(ctx, h, rollbackLastTxCommand{resp: resp}, resp)
	return err
}

// StartNextBlock advances the intra-batch block boundary.
func (h *Handle) StartNextBlock(ctx context.Context, env types.BlockEnv) error {
	resp := make(chan struct{}, 1)
	_, err := roundTrip(ctx, h, startNextBlockCommand{env: env, resp: resp}, resp)
	return err
}

// FinishBatch seals the batch and returns the finished-batch artifact. The
// engine terminates after replying; the handle must not be used afterwards
// except for Wait.
func (h *Handle) FinishBatch(ctx context.Context) (*vm.FinishedBatch, error) {
	resp := make(chan *vm.FinishedBatch, 1)
	return roundTrip(ctx, h, finishBatchCommand{resp: resp}, resp)
}

// Close closes the command queue, aborting the batch if it is not sealed
// yet. Leaving a batch unfinished this way is the intended shutdown path;
// the unfinished batch is simply never persisted.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		close(h.quit)
	})
}

// Wait blocks until the engine goroutine has exited.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func roundTrip[T any](ctx context.Context, h *Handle, cmd command, resp chan T) (T, error) {
	var zero T
	if !h.inFlight.CompareAndSwap(false, true) {
		return zero, ErrCommandInFlight
	}
	defer h.inFlight.Store(false)

	select {
	case h.commands <- cmd:
	case <-h.quit:
		return zero, ErrExecutorClosed
	case <-h.done:
		return zero, ErrExecutorClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case v := <-resp:
		return v, nil
	case <-h.done:
		// The engine replies and exits in the same breath on FinishBatch;
		// prefer the reply if both are ready.
		select {
		case v := <-resp:
			return v, nil
		default:
			return zero, ErrExecutorClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
