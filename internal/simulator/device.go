package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/stflabs/warehouse-core/internal/bus"
	"github.com/stflabs/warehouse-core/internal/infrastructure/config"
	"github.com/stflabs/warehouse-core/internal/infrastructure/logging"
	"github.com/stflabs/warehouse-core/internal/layout"
)

// Electrical model constants for the 24 V device bus. Power scales with
// speed and acceleration on top of a fixed idle draw.
const (
	busVoltage     = 24.0
	idleCurrentA   = 0.20 // controller electronics, brakes held
	ampsPerSpeed   = 0.015
	ampsPerAccel   = 0.004
	grippingAmps   = 0.50 // solenoid engaged
)

// Recorder receives per-tick telemetry samples from a device. A nil
// Recorder is allowed; samples are then dropped.
type Recorder interface {
	AddEnergySample(deviceID string, powerWatts, dtSeconds float64)
	AddStateSample(deviceID string, busy bool, dtSeconds float64)
}

// Device is one simulated warehouse unit driven by a fixed-rate physics
// loop. All mutable state sits behind mu; the loop goroutine, bus handler
// goroutines and Snapshot callers all take it.
type Device struct {
	id       string
	cfg      config.SimulatorConfig
	bus      bus.Bus
	recorder Recorder
	logger   *logging.Logger

	mu    sync.Mutex
	pos   layout.Position
	vel   velocity
	state State
	fault string

	// Motion target, valid while targetSet.
	target    layout.Position
	targetSet bool

	// Remaining grip time in seconds, counted down by Step.
	gripRemaining float64

	// Request currently being executed and the sticky outcome fields
	// echoed in every status message.
	currentRequest string
	lastCompleted  string
	lastError      *Error

	seq     uint64
	unsubs  []func()
	started bool
}

type velocity struct {
	X, Y float64
}

func (v velocity) magnitude() float64 {
	return math.Hypot(v.X, v.Y)
}

// New creates a device at the given starting position.
func New(id string, start layout.Position, cfg config.SimulatorConfig, b bus.Bus, rec Recorder, logger *logging.Logger) *Device {
	if logger == nil {
		logger = logging.Default()
	}
	return &Device{
		id:       id,
		cfg:      cfg,
		bus:      b,
		recorder: rec,
		logger:   logger.With("device", id),
		pos:      start,
		state:    StateIdle,
	}
}

// ID returns the device identifier.
func (d *Device) ID() string { return d.id }

// Run subscribes to the device's command topics and drives the physics
// loop at the configured tick rate until ctx is cancelled. Blocks; callers
// run it in its own goroutine.
func (d *Device) Run(ctx context.Context) error {
	if err := d.subscribe(); err != nil {
		return err
	}
	defer d.unsubscribe()

	ticker := time.NewTicker(d.cfg.TickInterval())
	defer ticker.Stop()

	dt := d.cfg.TickInterval().Seconds()
	d.logger.Info("device simulator started",
		"tick_hz", d.cfg.TickRate, "x", d.pos.X, "y", d.pos.Y)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("device simulator stopping")
			return ctx.Err()
		case <-ticker.C:
			d.Step(dt)
			d.publishStatus()
		}
	}
}

func (d *Device) subscribe() error {
	subs := []struct {
		topic   string
		handler bus.Handler
	}{
		{bus.DeviceCommandTopic(d.id, bus.VerbMove), d.handleMove},
		{bus.DeviceCommandTopic(d.id, bus.VerbGrip), d.handleGrip},
		{bus.DeviceCommandTopic(d.id, bus.VerbStop), d.handleStop},
		{bus.GlobalCommandTopic(bus.VerbReset), d.handleReset},
		{bus.GlobalCommandTopic(bus.VerbEstop), d.handleEstop},
	}

	for _, s := range subs {
		unsub, err := d.bus.Subscribe(s.topic, s.handler)
		if err != nil {
			d.unsubscribe()
			return fmt.Errorf("subscribe %s: %w", s.topic, err)
		}
		d.unsubs = append(d.unsubs, unsub)
	}
	return nil
}

func (d *Device) unsubscribe() {
	for _, unsub := range d.unsubs {
		unsub()
	}
	d.unsubs = nil
}

// Step advances the physics by dt seconds. Exported so tests can drive
// the device deterministically without the wall-clock ticker.
func (d *Device) Step(dt float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	accel := 0.0

	switch d.state {
	case StateMoving:
		accel = d.stepMotion(dt)
	case StateGripping:
		d.gripRemaining -= dt
		if d.gripRemaining <= 0 {
			d.gripRemaining = 0
			d.state = StateIdle
			d.completeLocked()
		}
	}

	// A broken integration step must not take the loop down with it.
	if !isFinite(d.pos.X) || !isFinite(d.pos.Y) || !isFinite(d.vel.X) || !isFinite(d.vel.Y) {
		d.logger.Error("non-finite physics state, faulting device",
			"x", d.pos.X, "y", d.pos.Y)
		d.pos = layout.Position{}
		d.vel = velocity{}
		d.faultLocked("non-finite physics state")
	}

	power := d.powerLocked(accel)
	if d.recorder != nil {
		d.recorder.AddEnergySample(d.id, power, dt)
		d.recorder.AddStateSample(d.id, d.state.Busy(), dt)
	}
}

// stepMotion integrates one tick of motion toward the target and returns
// the magnitude of the applied acceleration.
func (d *Device) stepMotion(dt float64) float64 {
	dx := d.target.X - d.pos.X
	dy := d.target.Y - d.pos.Y
	dist := math.Hypot(dx, dy)

	if dist <= d.cfg.Tolerance && d.vel.magnitude() <= d.cfg.MaxAccel*dt {
		d.pos = d.target
		d.vel = velocity{}
		d.targetSet = false
		d.state = StateIdle
		d.completeLocked()
		return 0
	}

	// Approach speed is limited so the device can still brake to a stop
	// inside the remaining distance.
	speedLimit := math.Min(d.cfg.MaxSpeed, math.Sqrt(2*d.cfg.MaxAccel*dist))

	var desired velocity
	if dist > 0 {
		desired = velocity{X: dx / dist * speedLimit, Y: dy / dist * speedLimit}
	}

	dvx := desired.X - d.vel.X
	dvy := desired.Y - d.vel.Y
	dvMag := math.Hypot(dvx, dvy)
	maxDV := d.cfg.MaxAccel * dt
	if dvMag > maxDV {
		scale := maxDV / dvMag
		dvx *= scale
		dvy *= scale
		dvMag = maxDV
	}
	d.vel.X += dvx
	d.vel.Y += dvy

	d.pos.X = clamp(d.pos.X+d.vel.X*dt, 0, d.cfg.EnvelopeMax)
	d.pos.Y = clamp(d.pos.Y+d.vel.Y*dt, 0, d.cfg.EnvelopeMax)

	if dt > 0 {
		return dvMag / dt
	}
	return 0
}

// powerLocked computes the instantaneous electrical draw in watts.
func (d *Device) powerLocked(accel float64) float64 {
	amps := idleCurrentA + ampsPerSpeed*d.vel.magnitude() + ampsPerAccel*accel
	if d.state == StateGripping {
		amps += grippingAmps
	}
	return busVoltage * amps
}

func (d *Device) handleMove(_ string, payload []byte) {
	var cmd MoveCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		d.logger.Warn("dropping malformed move command", "error", err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.state.Operational() {
		d.logger.Warn("ignoring move in non-operational state",
			"state", d.state, "request_id", cmd.RequestID)
		d.failRequestLocked(cmd.RequestID, "device "+string(d.state))
		return
	}

	d.currentRequest = cmd.RequestID
	// Targets outside the work envelope are unreachable; clamp so the
	// device converges on the nearest reachable point instead of hunting
	// forever.
	d.target = layout.Position{
		X: clamp(cmd.X, 0, d.cfg.EnvelopeMax),
		Y: clamp(cmd.Y, 0, d.cfg.EnvelopeMax),
	}
	d.targetSet = true
	d.state = StateMoving
	d.logger.Info("move accepted", "request_id", cmd.RequestID, "x", cmd.X, "y", cmd.Y)
}

func (d *Device) handleGrip(_ string, payload []byte) {
	var cmd GripCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		d.logger.Warn("dropping malformed grip command", "error", err)
		return
	}
	if cmd.Action != GripGrab && cmd.Action != GripRelease {
		d.logger.Warn("dropping grip command with unknown action", "action", cmd.Action)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.state.Operational() {
		d.failRequestLocked(cmd.RequestID, "device "+string(d.state))
		return
	}

	d.currentRequest = cmd.RequestID
	d.vel = velocity{}
	d.targetSet = false
	d.gripRemaining = d.cfg.GripDurationTime().Seconds()
	d.state = StateGripping
	d.logger.Info("grip accepted", "request_id", cmd.RequestID, "action", cmd.Action)
}

func (d *Device) handleStop(_ string, payload []byte) {
	var cmd StopCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		d.logger.Warn("dropping malformed stop command", "error", err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateMoving && d.state != StateGripping {
		return
	}

	d.vel = velocity{}
	d.targetSet = false
	d.gripRemaining = 0
	d.state = StateIdle
	if d.currentRequest != "" {
		d.failRequestLocked(d.currentRequest, "stopped")
	}
	d.logger.Info("motion stopped", "request_id", cmd.RequestID)
}

func (d *Device) handleReset(_ string, payload []byte) {
	var cmd GlobalCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		d.logger.Warn("dropping malformed reset command", "error", err)
		return
	}
	if cmd.Device != "" && cmd.Device != d.id {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.state
	d.vel = velocity{}
	d.targetSet = false
	d.gripRemaining = 0
	d.fault = ""
	d.currentRequest = ""
	d.state = StateIdle
	d.logger.Info("device reset", "previous_state", prev)
}

func (d *Device) handleEstop(_ string, payload []byte) {
	var cmd GlobalCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		// An estop fires even if its payload is garbage.
		cmd = GlobalCommand{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.vel = velocity{}
	d.targetSet = false
	d.gripRemaining = 0
	d.state = StateEstopped
	if d.currentRequest != "" {
		d.failRequestLocked(d.currentRequest, "emergency stop")
	}
	d.logger.Warn("emergency stop", "reason", cmd.Reason)
}

// ForceFault degrades the device to FAULTED, failing any request in
// flight. Used by breakdown scenarios and tests.
func (d *Device) ForceFault(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faultLocked(reason)
}

func (d *Device) faultLocked(reason string) {
	d.vel = velocity{}
	d.targetSet = false
	d.gripRemaining = 0
	d.fault = reason
	d.state = StateFaulted
	if d.currentRequest != "" {
		d.failRequestLocked(d.currentRequest, reason)
	}
	d.logger.Error("device faulted", "reason", reason)
}

func (d *Device) completeLocked() {
	if d.currentRequest == "" {
		return
	}
	d.lastCompleted = d.currentRequest
	d.lastError = nil
	d.currentRequest = ""
}

func (d *Device) failRequestLocked(requestID, reason string) {
	if requestID == "" {
		return
	}
	d.lastError = &Error{RequestID: requestID, Reason: reason}
	if d.currentRequest == requestID {
		d.currentRequest = ""
	}
}

// Snapshot returns a copy of the device's current status.
func (d *Device) Snapshot() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.statusLocked()
}

func (d *Device) statusLocked() Status {
	return Status{
		DeviceID:      d.id,
		State:         d.state,
		X:             d.pos.X,
		Y:             d.pos.Y,
		VX:            d.vel.X,
		VY:            d.vel.Y,
		PowerWatts:    d.powerLocked(0),
		Fault:         d.fault,
		LastCompleted: d.lastCompleted,
		LastError:     d.lastError,
		Seq:           d.seq,
		Timestamp:     time.Now().UnixMilli(),
	}
}

func (d *Device) publishStatus() {
	d.mu.Lock()
	d.seq++
	status := d.statusLocked()
	d.mu.Unlock()

	payload, err := json.Marshal(status)
	if err != nil {
		d.logger.Error("marshal status", "error", err)
		return
	}
	if err := d.bus.Publish(bus.DeviceStatusTopic(d.id), payload); err != nil {
		d.logger.Warn("publish status", "error", err)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
