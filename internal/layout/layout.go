package layout

import (
	"fmt"
	"sort"
)

// slotCoordinates is the static 3x3 storage grid: rows A-C, columns 1-3,
// 100-unit spacing. These match the seed migration and never change at
// runtime.
var slotCoordinates = map[string]Position{
	"A1": {X: 100, Y: 100}, "A2": {X: 200, Y: 100}, "A3": {X: 300, Y: 100},
	"B1": {X: 100, Y: 200}, "B2": {X: 200, Y: 200}, "B3": {X: 300, Y: 200},
	"C1": {X: 100, Y: 300}, "C2": {X: 200, Y: 300}, "C3": {X: 300, Y: 300},
}

// Named handoff zones outside the storage grid.
const (
	ZonePickup   = "PICKUP"
	ZoneConveyor = "CONVEYOR"
	ZoneOven     = "OVEN"
	ZoneHome     = "HOME"
	ZoneDropoff  = "DROPOFF"
)

// zoneCoordinates maps zone names to their fixed positions.
var zoneCoordinates = map[string]Position{
	ZonePickup:   {X: 25, Y: 25},
	ZoneConveyor: {X: 350, Y: 200},
	ZoneOven:     {X: 350, Y: 100},
	ZoneHome:     {X: 0, Y: 0},
	ZoneDropoff:  {X: 375, Y: 375},
}

// SlotPosition returns the fixed coordinates of a storage slot.
func SlotPosition(name string) (Position, error) {
	pos, ok := slotCoordinates[name]
	if !ok {
		return Position{}, fmt.Errorf("%w: %q", ErrSlotNotFound, name)
	}
	return pos, nil
}

// ZonePosition returns the fixed coordinates of a named handoff zone.
func ZonePosition(name string) (Position, error) {
	pos, ok := zoneCoordinates[name]
	if !ok {
		return Position{}, fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}
	return pos, nil
}

// Resolve returns the coordinates for a slot or zone name, trying slots
// first. This is what MOVE command targets go through.
func Resolve(name string) (Position, error) {
	if pos, err := SlotPosition(name); err == nil {
		return pos, nil
	}
	if pos, err := ZonePosition(name); err == nil {
		return pos, nil
	}
	return Position{}, fmt.Errorf("%w: %q is neither slot nor zone", ErrSlotNotFound, name)
}

// SlotAt performs the reverse lookup: the slot name whose coordinates equal
// the given position exactly. Used to verify coordinate round-trips.
func SlotAt(pos Position) (string, bool) {
	for name, p := range slotCoordinates {
		if p == pos {
			return name, true
		}
	}
	return "", false
}

// SlotNames returns all slot names in stable (sorted) order.
func SlotNames() []string {
	names := make([]string, 0, len(slotCoordinates))
	for name := range slotCoordinates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSlot reports whether the name is a known storage slot.
func IsSlot(name string) bool {
	_, ok := slotCoordinates[name]
	return ok
}
