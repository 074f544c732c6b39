package controller

import "errors"

// Command failure classes. All are terminal for the command that hit
// them; the controller never retries a queue entry.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidCommand is returned when validation rejects a command:
	// unknown target, missing payload field, slot occupancy conflict.
	ErrInvalidCommand = errors.New("controller: invalid command")

	// ErrInterlockRejected is returned when the safety interlock refuses
	// a motion envelope. Nothing is published to the device.
	ErrInterlockRejected = errors.New("controller: interlock rejected")

	// ErrDeviceTimeout is returned when a device does not acknowledge a
	// step within the step timeout.
	ErrDeviceTimeout = errors.New("controller: device timeout")

	// ErrDeviceFault is returned when a device reports a fault or refuses
	// a step while a command is executing.
	ErrDeviceFault = errors.New("controller: device fault")

	// ErrEmergencyStop is returned when an emergency stop preempts an
	// executing command.
	ErrEmergencyStop = errors.New("controller: emergency stop")
)
