package layout

import "errors"

// Domain-specific errors for layout operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrSlotNotFound is returned when a slot name is not in the grid.
	ErrSlotNotFound = errors.New("layout: slot not found")

	// ErrZoneNotFound is returned when a zone name is unknown.
	ErrZoneNotFound = errors.New("layout: zone not found")

	// ErrSlotOccupied is returned when storing into a slot that already
	// holds a carrier.
	ErrSlotOccupied = errors.New("layout: slot already occupied")

	// ErrSlotEmpty is returned when retrieving from a slot with no occupant.
	ErrSlotEmpty = errors.New("layout: slot is empty")
)
