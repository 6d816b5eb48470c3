// Package executor implements the per-batch transaction execution engine of
// the sequencer: a single-use, batch-scoped command loop that drives the VM
// through an ordered sequence of transactions, validates after every
// transaction that the batch can still be finalized, and seals the batch
// into the artifact consumed by the proving pipeline.
package executor

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/quasarlabs/sequencer/config"
	"github.com/quasarlabs/sequencer/storage"
	"github.com/quasarlabs/sequencer/types"
	"github.com/quasarlabs/sequencer/vm"
)

// NewVMFunc constructs the execution capability for one batch over the
// given storage view.
type NewVMFunc func(env types.BatchEnv, view *storage.View) vm.VM

// BatchExecutor constructs batch-scoped engines. One BatchExecutor is
// long-lived; each InitBatch call spawns a fresh single-use engine.
type BatchExecutor struct {
	storage storage.Factory
	newVM   NewVMFunc
	cfg     config.ExecutorConfig
	logger  logging.EventLogger
	metrics *Metrics
}

// NewBatchExecutor creates a factory for batch execution engines. A nil
// metrics value disables metrics.
func NewBatchExecutor(
	storageFactory storage.Factory,
	newVM NewVMFunc,
	cfg config.ExecutorConfig,
	logger logging.EventLogger,
	metrics *Metrics,
) *BatchExecutor {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &BatchExecutor{
		storage: storageFactory,
		newVM:   newVM,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// InitBatch acquires storage access for the batch and spawns the engine
// loop on its own goroutine (VM execution is long, CPU-bound and
// synchronous; it must not run on a goroutine shared with other work).
//
// It returns a nil handle and nil error when a shutdown was requested
// before storage access was granted: there is no batch to execute, and that
// is not a failure. The caller must not issue further commands after
// FinishBatch; the engine terminates once the batch is sealed.
func (e *BatchExecutor) InitBatch(ctx context.Context, env types.BatchEnv) (*Handle, error) {
	view, err := e.storage.AccessStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed getting access to batch storage: %w", err)
	}
	if view == nil {
		e.logger.Info("shutdown requested before storage access, no batch started", "batch", env.Number)
		return nil, nil
	}

	commands := make(chan command, commandQueueCapacity)
	quit := make(chan struct{})
	receiver := &commandReceiver{
		cfg:      e.cfg,
		commands: commands,
		quit:     quit,
		logger:   e.logger,
		metrics:  e.metrics,
		machine:  e.newVM(env, view),
		view:     view,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		receiver.run(env)
	}()

	return &Handle{commands: commands, quit: quit, done: done}, nil
}
