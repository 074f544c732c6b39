// Package interlock is the motion safety layer.
//
// Each dispatched move reserves an axis-aligned envelope covering its
// straight-line path plus a safety margin. Reservations are exclusive:
// a move whose envelope overlaps another device's held envelope, or a
// configured static zone, is rejected before anything is published to
// the device. Check and grant are atomic, so admission is race-free even
// with concurrent callers.
package interlock
