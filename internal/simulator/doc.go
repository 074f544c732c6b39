// Package simulator stands in for the physical warehouse hardware.
//
// Each device runs a fixed-rate physics loop: accelerate toward the
// current target under speed and acceleration limits, clamp to the work
// envelope, snap to the target inside the position tolerance. Commands
// arrive over the hardware bus on the device's cmd topics; a status
// message goes out on its status topic every tick, carrying pose, power
// draw and the outcome of the last request. The simulator never talks to
// the controller directly, only through the bus, so the controller cannot
// tell it apart from real hardware.
package simulator
