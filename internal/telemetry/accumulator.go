package telemetry

import (
	"sync"
)

// deviceTotals holds the running integrals for one device. Guarded by its
// own mutex so devices never contend with each other.
type deviceTotals struct {
	mu           sync.Mutex
	energyJoules float64
	powerWatts   float64 // last instantaneous sample
	busySeconds  float64
	totalSeconds float64
}

// Accumulator integrates per-device energy and uptime from the sample
// stream the simulators emit every tick.
//
// The energy integral is monotonically non-decreasing: negative power or
// negative dt samples are discarded rather than allowed to run the total
// backwards. Adding samples never blocks on I/O; flushing to external
// sinks happens separately.
type Accumulator struct {
	mu      sync.Mutex
	devices map[string]*deviceTotals
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{devices: make(map[string]*deviceTotals)}
}

func (a *Accumulator) totals(deviceID string) *deviceTotals {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.devices[deviceID]
	if !ok {
		t = &deviceTotals{}
		a.devices[deviceID] = t
	}
	return t
}

// AddEnergySample integrates powerWatts over dtSeconds into the device's
// running energy total. Non-positive dt and negative power are discarded.
func (a *Accumulator) AddEnergySample(deviceID string, powerWatts, dtSeconds float64) {
	if dtSeconds <= 0 || powerWatts < 0 {
		return
	}
	t := a.totals(deviceID)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.energyJoules += powerWatts * dtSeconds
	t.powerWatts = powerWatts
}

// AddStateSample accounts dtSeconds of observed time, counting it toward
// busy time when the device was doing work.
func (a *Accumulator) AddStateSample(deviceID string, busy bool, dtSeconds float64) {
	if dtSeconds <= 0 {
		return
	}
	t := a.totals(deviceID)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalSeconds += dtSeconds
	if busy {
		t.busySeconds += dtSeconds
	}
}

// EnergyJoules returns the device's running energy integral.
func (a *Accumulator) EnergyJoules(deviceID string) float64 {
	t := a.totals(deviceID)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.energyJoules
}

// UptimeRatio returns busy time over total observed time, zero before any
// sample arrives.
func (a *Accumulator) UptimeRatio(deviceID string) float64 {
	t := a.totals(deviceID)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.totalSeconds == 0 {
		return 0
	}
	return t.busySeconds / t.totalSeconds
}

// DeviceSnapshot is a point-in-time copy of one device's totals.
type DeviceSnapshot struct {
	DeviceID     string
	EnergyJoules float64
	PowerWatts   float64
	UptimeRatio  float64
}

// Snapshot returns a copy of every device's totals.
func (a *Accumulator) Snapshot() []DeviceSnapshot {
	a.mu.Lock()
	ids := make([]string, 0, len(a.devices))
	for id := range a.devices {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	snaps := make([]DeviceSnapshot, 0, len(ids))
	for _, id := range ids {
		t := a.totals(id)
		t.mu.Lock()
		snap := DeviceSnapshot{
			DeviceID:     id,
			EnergyJoules: t.energyJoules,
			PowerWatts:   t.powerWatts,
		}
		if t.totalSeconds > 0 {
			snap.UptimeRatio = t.busySeconds / t.totalSeconds
		}
		t.mu.Unlock()
		snaps = append(snaps, snap)
	}
	return snaps
}
