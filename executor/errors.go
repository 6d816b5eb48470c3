package executor

import "errors"

// These errors are returned by Handle methods.
var (
	// ErrExecutorClosed is returned when the engine has terminated before
	// the command could be processed.
	ErrExecutorClosed = errors.New("batch executor terminated")

	// ErrCommandInFlight is returned when a command is issued while the
	// previous one has not been replied to yet.
	ErrCommandInFlight = errors.New("previous command still in flight")
)
