package interlock

import (
	"fmt"
	"math"
	"sync"

	"github.com/stflabs/warehouse-core/internal/layout"
)

// Rect is an axis-aligned bounding box in warehouse coordinates.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Intersects reports whether two rectangles overlap. Touching edges count
// as overlap: two devices sharing a boundary line is already too close.
func (r Rect) Intersects(o Rect) bool {
	return r.MinX <= o.MaxX && o.MinX <= r.MaxX &&
		r.MinY <= o.MaxY && o.MinY <= r.MaxY
}

func (r Rect) String() string {
	return fmt.Sprintf("[%.0f,%.0f %.0f,%.0f]", r.MinX, r.MinY, r.MaxX, r.MaxY)
}

// motionEnvelope is the AABB covering a straight-line move from a to b,
// inflated by margin on all sides.
func motionEnvelope(a, b layout.Position, margin float64) Rect {
	return Rect{
		MinX: math.Min(a.X, b.X) - margin,
		MinY: math.Min(a.Y, b.Y) - margin,
		MaxX: math.Max(a.X, b.X) + margin,
		MaxY: math.Max(a.Y, b.Y) + margin,
	}
}

// StaticZone is a permanently reserved region no motion envelope may enter.
type StaticZone struct {
	Name string
	Rect Rect
}

// Guard grants exclusive motion envelopes to devices.
//
// Before publishing a move the controller calls Reserve with the motion's
// endpoints; the check against existing reservations and static zones and
// the grant happen atomically under one lock, so two conflicting moves can
// never both be admitted. The reservation is held until Release.
type Guard struct {
	margin float64
	static []StaticZone

	mu       sync.Mutex
	reserved map[string]Rect // device id -> active envelope
}

// NewGuard creates a guard with the given safety margin and static zones.
func NewGuard(margin float64, static []StaticZone) *Guard {
	return &Guard{
		margin:   margin,
		static:   static,
		reserved: make(map[string]Rect),
	}
}

// Reserve grants the device an exclusive envelope covering a move from
// `from` to `to`, inflated by the margin. Returns ErrConflict (wrapped
// with the holder's name) if the envelope overlaps another device's
// active reservation or a static zone. A device re-reserving replaces
// its own envelope; it never conflicts with itself.
func (g *Guard) Reserve(deviceID string, from, to layout.Position) error {
	env := motionEnvelope(from, to, g.margin)

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, zone := range g.static {
		if env.Intersects(zone.Rect) {
			return fmt.Errorf("%w: envelope %s enters static zone %q",
				ErrConflict, env, zone.Name)
		}
	}
	for holder, held := range g.reserved {
		if holder == deviceID {
			continue
		}
		if env.Intersects(held) {
			return fmt.Errorf("%w: envelope %s overlaps %s holding %s",
				ErrConflict, env, holder, held)
		}
	}

	g.reserved[deviceID] = env
	return nil
}

// Release drops the device's active reservation. Releasing a device that
// holds nothing is a no-op.
func (g *Guard) Release(deviceID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.reserved, deviceID)
}

// ReleaseAll drops every reservation. Used on emergency stop and reset.
func (g *Guard) ReleaseAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.reserved)
}

// Holding reports whether the device currently holds a reservation.
func (g *Guard) Holding(deviceID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.reserved[deviceID]
	return ok
}
