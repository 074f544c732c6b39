package simulator

// Wire types exchanged over the hardware bus. All payloads are JSON.

// MoveCommand orders a device to a coordinate. RequestID correlates the
// eventual completion in the status stream.
type MoveCommand struct {
	RequestID string  `json:"request_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// GripAction selects what the gripper does.
type GripAction string

const (
	GripGrab    GripAction = "grab"
	GripRelease GripAction = "release"
)

// GripCommand orders a grab or release cycle.
type GripCommand struct {
	RequestID string     `json:"request_id"`
	Action    GripAction `json:"action"`
}

// StopCommand halts the current motion without faulting the device.
type StopCommand struct {
	RequestID string `json:"request_id,omitempty"`
}

// GlobalCommand is the payload of the broadcast reset and estop topics.
// Device, when set on a reset, restricts the reset to that device.
type GlobalCommand struct {
	Device string `json:"device,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Status is published on the device's status topic every tick.
//
// LastCompleted carries the request id of the most recently finished
// command; LastError the id and reason of the most recently failed one.
// Both are sticky until overwritten, so a subscriber that joins late still
// sees the outcome.
type Status struct {
	DeviceID   string  `json:"device_id"`
	State      State   `json:"state"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	VX         float64 `json:"vx"`
	VY         float64 `json:"vy"`
	PowerWatts float64 `json:"power_watts"`
	Fault      string  `json:"fault,omitempty"`

	LastCompleted string `json:"last_completed,omitempty"`
	LastError     *Error `json:"last_error,omitempty"`

	Seq       uint64 `json:"seq"`
	Timestamp int64  `json:"timestamp_ms"`
}

// Error is a failed request reference inside a Status.
type Error struct {
	RequestID string `json:"request_id"`
	Reason    string `json:"reason"`
}
