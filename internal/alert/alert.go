package alert

import "time"

// Severity classifies an alert for downstream triage.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether the severity is one of the known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Alert is one recorded operational event.
//
// DeviceID and CommandID are optional links back to the device or command
// the alert concerns. System-wide alerts (e.g. an emergency stop) carry
// neither.
type Alert struct {
	ID        int64     `json:"id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	DeviceID  string    `json:"device_id,omitempty"`
	CommandID int64     `json:"command_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
