package command

import "errors"

// Domain-specific errors for queue operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrQueueEmpty is returned by DequeuePending when no PENDING command exists.
	ErrQueueEmpty = errors.New("command: queue empty")

	// ErrCommandNotFound is returned when the command id does not exist.
	ErrCommandNotFound = errors.New("command: not found")

	// ErrBadTransition is returned when a status transition is attempted
	// from the wrong prior status (e.g. completing a PENDING command).
	ErrBadTransition = errors.New("command: invalid status transition")

	// ErrInvalidType is returned by Enqueue for unknown command types.
	ErrInvalidType = errors.New("command: invalid type")

	// ErrBusy is returned by MarkInProgress when another command is
	// already IN_PROGRESS. At most one command executes at a time.
	ErrBusy = errors.New("command: another command is in progress")
)
