// Package layout holds the static geometry of the warehouse cell and the
// dynamic occupancy of its storage slots.
//
// The geometry, a 3x3 storage grid (A1..C3, 100-unit spacing) plus named
// handoff zones (PICKUP, CONVEYOR, OVEN, HOME, DROPOFF), is pure data,
// fixed at compile time and mirrored by the seed migration. Occupancy is
// the one mutable part and lives in SQLite behind SlotRepository, written
// only by the controller when a STORE or RETRIEVE completes.
package layout
