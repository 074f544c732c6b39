package layout

import (
	"fmt"
	"math"
	"time"
)

// Position is a point in warehouse floor coordinates (units are millimetres
// in the physical cell; the twin only needs them to be consistent).
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the Euclidean distance to another position.
func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Hypot(dx, dy)
}

// String formats the position for log output.
func (p Position) String() string {
	return fmt.Sprintf("(%.1f, %.1f)", p.X, p.Y)
}

// Slot is one storage location: a fixed coordinate plus the carrier
// currently stored there, if any.
type Slot struct {
	Name      string    `json:"name"`
	Position  Position  `json:"position"`
	Occupant  *string   `json:"occupant,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Occupied reports whether the slot currently holds a carrier.
func (s *Slot) Occupied() bool {
	return s.Occupant != nil
}
