package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stflabs/warehouse-core/internal/alert"
	"github.com/stflabs/warehouse-core/internal/bus"
	"github.com/stflabs/warehouse-core/internal/command"
	"github.com/stflabs/warehouse-core/internal/layout"
	"github.com/stflabs/warehouse-core/internal/simulator"
)

func newRequestID() string { return uuid.NewString() }

// step is one dispatchable unit of a command plan.
type step struct {
	device string
	verb   string // bus.VerbMove, bus.VerbGrip
	to     layout.Position
	action simulator.GripAction
}

// plan is a validated command broken into ordered steps plus the
// occupancy write that runs after all steps succeed.
type plan struct {
	steps     []step
	onSuccess func(ctx context.Context) error
	doneMsg   string
}

// execute runs one command end to end and writes the outcome back.
func (c *Controller) execute(ctx context.Context, cmd *command.Command) {
	logger := c.logger.With("command_id", cmd.ID, "type", cmd.Type)
	logger.Info("executing command", "target", cmd.Target)

	if err := c.queue.MarkInProgress(ctx, cmd.ID); err != nil {
		logger.Error("claiming command", "error", err)
		return
	}

	// A signal left over from an already-executed stop must not preempt
	// this command; devices hit by a genuine stop refuse steps anyway.
	c.drainEstopSignals()

	if cmd.Type == command.TypeEmergencyStop {
		c.executeEstop(ctx, cmd)
		return
	}

	p, err := c.buildPlan(ctx, cmd)
	if err == nil {
		err = c.runSteps(ctx, p)
	}
	if err == nil && p.onSuccess != nil {
		err = p.onSuccess(ctx)
	}

	if err != nil {
		c.fail(ctx, cmd, err)
		return
	}

	if markErr := c.queue.MarkCompleted(ctx, cmd.ID, p.doneMsg); markErr != nil {
		logger.Error("completing command", "error", markErr)
		return
	}
	c.countCommand(cmd.Type, "completed")
	logger.Info("command completed", "message", p.doneMsg)
}

// fail writes the terminal FAILED status, records an alert and counts the
// outcome.
func (c *Controller) fail(ctx context.Context, cmd *command.Command, err error) {
	c.logger.Error("command failed", "command_id", cmd.ID, "type", cmd.Type, "error", err)

	if markErr := c.queue.MarkFailed(ctx, cmd.ID, err.Error()); markErr != nil {
		c.logger.Error("recording failure", "command_id", cmd.ID, "error", markErr)
	}

	sev := alert.SeverityMedium
	switch {
	case errors.Is(err, ErrEmergencyStop):
		sev = alert.SeverityCritical
	case errors.Is(err, ErrDeviceFault), errors.Is(err, ErrDeviceTimeout):
		sev = alert.SeverityHigh
	case errors.Is(err, ErrInvalidCommand):
		sev = alert.SeverityLow
	}
	c.recordAlert(ctx, sev, fmt.Sprintf("command %d (%s): %v", cmd.ID, cmd.Type, err), "", cmd.ID)
	c.countCommand(cmd.Type, "failed")

	if c.metrics != nil && errors.Is(err, ErrInterlockRejected) {
		c.metrics.InterlockRejections.Inc()
	}
}

// buildPlan validates the command and lays out its steps.
func (c *Controller) buildPlan(ctx context.Context, cmd *command.Command) (*plan, error) {
	device := DefaultDevice
	if v, ok := cmd.Payload["device"].(string); ok && v != "" {
		device = v
	}
	if !c.knownDevice(device) {
		return nil, fmt.Errorf("%w: unknown device %q", ErrInvalidCommand, device)
	}

	switch cmd.Type {
	case command.TypeStore:
		return c.planStore(ctx, cmd, device)
	case command.TypeRetrieve:
		return c.planRetrieve(ctx, cmd, device)
	case command.TypeMove:
		return c.planMove(cmd, device)
	case command.TypeReset:
		return c.planReset(cmd)
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidCommand, cmd.Type)
	}
}

// planStore fetches a carrier from PICKUP and parks it in the target slot.
func (c *Controller) planStore(ctx context.Context, cmd *command.Command, device string) (*plan, error) {
	if !layout.IsSlot(cmd.Target) {
		return nil, fmt.Errorf("%w: %q is not a storage slot", ErrInvalidCommand, cmd.Target)
	}
	slot, err := c.slots.Get(ctx, cmd.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if slot.Occupied() {
		return nil, fmt.Errorf("%w: slot %s already holds %s", ErrInvalidCommand, slot.Name, *slot.Occupant)
	}

	carrier := fmt.Sprintf("carrier-%d", cmd.ID)
	if v, ok := cmd.Payload["carrier"].(string); ok && v != "" {
		carrier = v
	}

	pickup, _ := layout.ZonePosition(layout.ZonePickup)
	return &plan{
		steps: []step{
			{device: device, verb: bus.VerbMove, to: pickup},
			{device: device, verb: bus.VerbGrip, action: simulator.GripGrab},
			{device: device, verb: bus.VerbMove, to: slot.Position},
			{device: device, verb: bus.VerbGrip, action: simulator.GripRelease},
		},
		onSuccess: func(ctx context.Context) error {
			return c.slots.SetOccupant(ctx, slot.Name, carrier)
		},
		doneMsg: fmt.Sprintf("stored %s in %s", carrier, slot.Name),
	}, nil
}

// planRetrieve lifts the occupant of the target slot and carries it to
// DROPOFF.
func (c *Controller) planRetrieve(ctx context.Context, cmd *command.Command, device string) (*plan, error) {
	if !layout.IsSlot(cmd.Target) {
		return nil, fmt.Errorf("%w: %q is not a storage slot", ErrInvalidCommand, cmd.Target)
	}
	slot, err := c.slots.Get(ctx, cmd.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if !slot.Occupied() {
		return nil, fmt.Errorf("%w: slot %s is empty", ErrInvalidCommand, slot.Name)
	}
	carrier := *slot.Occupant

	dropoff, _ := layout.ZonePosition(layout.ZoneDropoff)
	return &plan{
		steps: []step{
			{device: device, verb: bus.VerbMove, to: slot.Position},
			{device: device, verb: bus.VerbGrip, action: simulator.GripGrab},
			{device: device, verb: bus.VerbMove, to: dropoff},
			{device: device, verb: bus.VerbGrip, action: simulator.GripRelease},
		},
		onSuccess: func(ctx context.Context) error {
			return c.slots.ClearOccupant(ctx, slot.Name)
		},
		doneMsg: fmt.Sprintf("retrieved %s from %s", carrier, slot.Name),
	}, nil
}

// planMove sends one device to a slot or named zone.
func (c *Controller) planMove(cmd *command.Command, device string) (*plan, error) {
	to, err := layout.Resolve(cmd.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown target %q", ErrInvalidCommand, cmd.Target)
	}
	return &plan{
		steps:   []step{{device: device, verb: bus.VerbMove, to: to}},
		doneMsg: fmt.Sprintf("%s at %s", device, cmd.Target),
	}, nil
}

// planReset broadcasts a reset; devices act on it without acknowledging,
// so the plan has no ack-awaited steps.
func (c *Controller) planReset(cmd *command.Command) (*plan, error) {
	filter := ""
	if v, ok := cmd.Payload["device"].(string); ok {
		filter = v
	}
	if filter != "" && !c.knownDevice(filter) {
		return nil, fmt.Errorf("%w: unknown device %q", ErrInvalidCommand, filter)
	}

	payload, err := json.Marshal(simulator.GlobalCommand{Device: filter})
	if err != nil {
		return nil, fmt.Errorf("marshal reset: %w", err)
	}
	if err := c.bus.Publish(bus.GlobalCommandTopic(bus.VerbReset), payload); err != nil {
		return nil, fmt.Errorf("publish reset: %w", err)
	}

	c.guard.ReleaseAll()
	msg := "reset broadcast"
	if filter != "" {
		msg = "reset " + filter
	}
	return &plan{doneMsg: msg}, nil
}

// executeEstop broadcasts the stop and completes the command's own queue
// row; the stop itself succeeded even though it fails everything else.
func (c *Controller) executeEstop(ctx context.Context, cmd *command.Command) {
	reason := "commanded"
	if v, ok := cmd.Payload["reason"].(string); ok && v != "" {
		reason = v
	}
	c.broadcastEstop(reason)

	if err := c.queue.MarkCompleted(ctx, cmd.ID, "emergency stop executed"); err != nil {
		c.logger.Error("completing estop command", "error", err)
	}
	c.recordAlert(ctx, alert.SeverityCritical, "emergency stop: "+reason, "", cmd.ID)
	c.countCommand(cmd.Type, "completed")
}

func (c *Controller) broadcastEstop(reason string) {
	payload, err := json.Marshal(simulator.GlobalCommand{Reason: reason})
	if err != nil {
		payload = []byte("{}")
	}
	if err := c.bus.Publish(bus.GlobalCommandTopic(bus.VerbEstop), payload); err != nil {
		c.logger.Error("publishing estop", "error", err)
	}
	c.guard.ReleaseAll()
	if c.metrics != nil {
		c.metrics.EstopsTotal.Inc()
	}
	c.logger.Warn("emergency stop broadcast", "reason", reason)
}

// runSteps dispatches each step in order, waiting for the device ack
// before moving on.
func (c *Controller) runSteps(ctx context.Context, p *plan) error {
	for i, s := range p.steps {
		if err := c.runStep(ctx, s); err != nil {
			return fmt.Errorf("step %d/%d: %w", i+1, len(p.steps), err)
		}
	}
	return nil
}

func (c *Controller) runStep(ctx context.Context, s step) error {
	requestID := c.newRequestID()

	var (
		topic   string
		payload []byte
		err     error
	)
	switch s.verb {
	case bus.VerbMove:
		// The interlock is consulted exactly once per motion, immediately
		// before dispatch. A rejection publishes nothing.
		from := c.lastKnownPosition(s.device, s.to)
		if rerr := c.guard.Reserve(s.device, from, s.to); rerr != nil {
			return fmt.Errorf("%w: %v", ErrInterlockRejected, rerr)
		}
		defer c.guard.Release(s.device)

		topic = bus.DeviceCommandTopic(s.device, bus.VerbMove)
		payload, err = json.Marshal(simulator.MoveCommand{RequestID: requestID, X: s.to.X, Y: s.to.Y})
	case bus.VerbGrip:
		topic = bus.DeviceCommandTopic(s.device, bus.VerbGrip)
		payload, err = json.Marshal(simulator.GripCommand{RequestID: requestID, Action: s.action})
	default:
		return fmt.Errorf("%w: unknown step verb %q", ErrInvalidCommand, s.verb)
	}
	if err != nil {
		return fmt.Errorf("marshal step: %w", err)
	}

	c.drainStatusBacklog()
	if err := c.bus.Publish(topic, payload); err != nil {
		return fmt.Errorf("publish step: %w", err)
	}

	return c.awaitAck(ctx, s.device, requestID)
}

func (c *Controller) drainEstopSignals() {
	for {
		select {
		case <-c.estopCh:
		default:
			return
		}
	}
}

// drainStatusBacklog discards statuses queued before the step was
// published; their request ids cannot match the one about to be issued.
func (c *Controller) drainStatusBacklog() {
	for {
		select {
		case <-c.statusCh:
		default:
			return
		}
	}
}

// awaitAck waits for the device to confirm or refuse the request, bounded
// by the step timeout and preemptible by an emergency stop.
func (c *Controller) awaitAck(ctx context.Context, deviceID, requestID string) error {
	timeout := time.NewTimer(c.cfg.StepTimeoutDuration())
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-c.estopCh:
			c.broadcastEstop("bus signal")
			return fmt.Errorf("%w: preempted while awaiting %s", ErrEmergencyStop, deviceID)

		case <-timeout.C:
			return fmt.Errorf("%w: %s did not acknowledge within %s",
				ErrDeviceTimeout, deviceID, c.cfg.StepTimeoutDuration())

		case s := <-c.statusCh:
			if s.DeviceID != deviceID {
				continue
			}
			if s.LastCompleted == requestID {
				return nil
			}
			if s.LastError != nil && s.LastError.RequestID == requestID {
				if s.LastError.Reason == "emergency stop" {
					return fmt.Errorf("%w: %s", ErrEmergencyStop, deviceID)
				}
				return fmt.Errorf("%w: %s refused: %s", ErrDeviceFault, deviceID, s.LastError.Reason)
			}
			if s.State == simulator.StateFaulted {
				return fmt.Errorf("%w: %s faulted: %s", ErrDeviceFault, deviceID, s.Fault)
			}
			if s.State == simulator.StateEstopped {
				return fmt.Errorf("%w: %s estopped", ErrEmergencyStop, deviceID)
			}
		}
	}
}
