package alert

import "errors"

// Domain-specific errors for alert operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidSeverity is returned when an unknown severity is supplied.
	ErrInvalidSeverity = errors.New("alert: invalid severity")

	// ErrEmptyMessage is returned when an alert is created with no message.
	ErrEmptyMessage = errors.New("alert: empty message")
)
