package executor

import (
	"github.com/quasarlabs/sequencer/types"
	"github.com/quasarlabs/sequencer/vm"
)

// Commands are processed one-by-one: the next command is never enqueued
// until the previous command's reply is received, so capacity 1 is enough
// for the commands channel.
const commandQueueCapacity = 1

// command is a request to the engine, paired with a one-shot reply channel.
// Reply channels are buffered so the engine never blocks on a reply send.
type command interface {
	isCommand()
}

type executeTxCommand struct {
	tx   *types.Transaction
	resp chan TxExecutionResult
}

type rollbackLastTxCommand struct {
	resp chan struct{}
}

type startNextBlockCommand struct {
	env  types.BlockEnv
	resp chan struct{}
}

type finishBatchCommand struct {
	resp chan *vm.FinishedBatch
}

func (executeTxCommand) isCommand()      {}
func (rollbackLastTxCommand) isCommand() {}
func (startNextBlockCommand) isCommand() {}
func (finishBatchCommand) isCommand()    {}
