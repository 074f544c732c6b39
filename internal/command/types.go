package command

import "time"

// Type enumerates the operations producers may request.
type Type string

const (
	TypeStore         Type = "STORE"
	TypeRetrieve      Type = "RETRIEVE"
	TypeMove          Type = "MOVE"
	TypeReset         Type = "RESET"
	TypeEmergencyStop Type = "EMERGENCY_STOP"
)

// Valid reports whether the type is one of the known command types.
func (t Type) Valid() bool {
	switch t {
	case TypeStore, TypeRetrieve, TypeMove, TypeReset, TypeEmergencyStop:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a queued command.
//
// Transitions are monotonic and one-directional:
// PENDING -> IN_PROGRESS -> COMPLETED | FAILED. A command never returns to
// PENDING, and terminal rows never change again.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether the status is COMPLETED or FAILED.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Command is one unit of work in the durable queue.
//
// Producers create commands at PENDING via Enqueue and read them back via
// Get; from IN_PROGRESS onward the controller is the only writer.
type Command struct {
	ID      int64          `json:"id"`
	Type    Type           `json:"type"`
	Target  string         `json:"target,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Status  Status         `json:"status"`

	// Message holds the outcome detail, populated on terminal transitions.
	Message string `json:"message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
