package simulator

// State is the operational state of a simulated device.
type State string

const (
	StateIdle     State = "IDLE"
	StateMoving   State = "MOVING"
	StateGripping State = "GRIPPING"
	StateFaulted  State = "FAULTED"
	StateEstopped State = "ESTOPPED"
)

// Busy reports whether the device is doing work (used for uptime ratios).
func (s State) Busy() bool {
	return s == StateMoving || s == StateGripping
}

// Operational reports whether the device accepts motion commands.
func (s State) Operational() bool {
	return s == StateIdle || s == StateMoving || s == StateGripping
}
