package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stflabs/warehouse-core/internal/alert"
	"github.com/stflabs/warehouse-core/internal/bus"
	"github.com/stflabs/warehouse-core/internal/command"
	"github.com/stflabs/warehouse-core/internal/infrastructure/config"
	"github.com/stflabs/warehouse-core/internal/infrastructure/logging"
	"github.com/stflabs/warehouse-core/internal/interlock"
	"github.com/stflabs/warehouse-core/internal/layout"
	"github.com/stflabs/warehouse-core/internal/simulator"
	"github.com/stflabs/warehouse-core/internal/telemetry"
)

// DefaultDevice is the device used by STORE, RETRIEVE and MOVE when the
// payload names none.
const DefaultDevice = "vgr"

// statusBuffer bounds the status fan-in channel; at 10 Hz per device the
// loop drains far faster than three devices fill it.
const statusBuffer = 64

// Controller is the single queue consumer.
type Controller struct {
	queue   command.Queue
	slots   layout.SlotRepository
	alerts  alert.Repository
	guard   *interlock.Guard
	bus     bus.Bus
	metrics *telemetry.Metrics
	logger  *logging.Logger
	cfg     config.ControllerConfig
	devices []string

	statusCh chan simulator.Status
	estopCh  chan struct{}

	mu     sync.Mutex
	latest map[string]simulator.Status

	// newRequestID is swappable for deterministic tests.
	newRequestID func() string
}

// Options carries the controller's collaborators. Metrics may be nil.
type Options struct {
	Queue    command.Queue
	Slots    layout.SlotRepository
	Alerts   alert.Repository
	Guard    *interlock.Guard
	Bus      bus.Bus
	Metrics  *telemetry.Metrics
	Logger   *logging.Logger
	Config   config.ControllerConfig
	Devices  []string
}

// New creates a controller. Devices defaults to the standard cell
// (hbw, vgr, conveyor) when empty.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	devices := opts.Devices
	if len(devices) == 0 {
		devices = []string{"hbw", DefaultDevice, "conveyor"}
	}
	return &Controller{
		queue:        opts.Queue,
		slots:        opts.Slots,
		alerts:       opts.Alerts,
		guard:        opts.Guard,
		bus:          opts.Bus,
		metrics:      opts.Metrics,
		logger:       logger.With("component", "controller"),
		cfg:          opts.Config,
		devices:      devices,
		statusCh:     make(chan simulator.Status, statusBuffer),
		estopCh:      make(chan struct{}, 1),
		latest:       make(map[string]simulator.Status),
		newRequestID: newRequestID,
	}
}

// Run blocks, consuming the queue until ctx is cancelled.
//
// On startup any command left IN_PROGRESS by a previous process is failed:
// its device-side progress is unknown, and one attempt per queue entry
// keeps the history honest.
func (c *Controller) Run(ctx context.Context) error {
	if n, err := c.queue.FailInFlight(ctx, "controller restarted"); err != nil {
		return fmt.Errorf("reconcile in-flight commands: %w", err)
	} else if n > 0 {
		c.logger.Warn("failed commands left in-flight by previous run", "count", n)
		c.recordAlert(ctx, alert.SeverityMedium, fmt.Sprintf("%d in-flight command(s) failed on restart", n), "", 0)
	}

	unsubStatus, err := c.bus.Subscribe(bus.AllStatusTopic(), c.handleStatus)
	if err != nil {
		return fmt.Errorf("subscribe device status: %w", err)
	}
	defer unsubStatus()

	unsubEstop, err := c.bus.Subscribe(bus.GlobalCommandTopic(bus.VerbEstop), c.handleEstopSignal)
	if err != nil {
		return fmt.Errorf("subscribe estop: %w", err)
	}
	defer unsubEstop()

	ticker := time.NewTicker(c.cfg.PollIntervalDuration())
	defer ticker.Stop()

	c.logger.Info("controller started",
		"poll_interval", c.cfg.PollIntervalDuration(),
		"step_timeout", c.cfg.StepTimeoutDuration())

	for {
		c.processAvailable(ctx)

		select {
		case <-ctx.Done():
			c.logger.Info("controller stopping")
			return ctx.Err()
		case <-c.estopCh:
			// A bus-level estop with no command executing: devices have
			// already latched ESTOPPED; nothing to write back.
			c.logger.Warn("emergency stop signal while idle")
		case <-ticker.C:
		}
	}
}

// processAvailable drains the queue until it is empty, emergency stops
// first.
func (c *Controller) processAvailable(ctx context.Context) {
	for ctx.Err() == nil {
		cmd, err := c.nextCommand(ctx)
		if errors.Is(err, command.ErrQueueEmpty) {
			return
		}
		if err != nil {
			c.logger.Error("reading queue", "error", err)
			return
		}
		c.execute(ctx, cmd)
	}
}

// nextCommand returns the next command to run: the oldest pending
// emergency stop if one exists, otherwise the queue head.
func (c *Controller) nextCommand(ctx context.Context) (*command.Command, error) {
	if cmd, err := c.queue.PendingEmergencyStop(ctx); err == nil {
		return cmd, nil
	} else if !errors.Is(err, command.ErrQueueEmpty) {
		return nil, err
	}
	return c.queue.DequeuePending(ctx)
}

func (c *Controller) handleStatus(_ string, payload []byte) {
	var s simulator.Status
	if err := json.Unmarshal(payload, &s); err != nil || s.DeviceID == "" {
		return
	}

	c.mu.Lock()
	c.latest[s.DeviceID] = s
	c.mu.Unlock()

	select {
	case c.statusCh <- s:
	default:
		// Waiters only need the newest message; drop under backlog.
	}
}

func (c *Controller) handleEstopSignal(_ string, _ []byte) {
	select {
	case c.estopCh <- struct{}{}:
	default:
	}
}

// lastKnownPosition returns where the controller believes a device is.
// Falls back to the target itself before the first status arrives, which
// degrades the interlock envelope to the destination box only.
func (c *Controller) lastKnownPosition(deviceID string, fallback layout.Position) layout.Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.latest[deviceID]; ok {
		return layout.Position{X: s.X, Y: s.Y}
	}
	return fallback
}

func (c *Controller) knownDevice(id string) bool {
	for _, d := range c.devices {
		if d == id {
			return true
		}
	}
	return false
}

func (c *Controller) recordAlert(ctx context.Context, sev alert.Severity, msg, deviceID string, commandID int64) {
	if c.alerts == nil {
		return
	}
	_, err := c.alerts.Create(ctx, alert.Alert{
		Severity:  sev,
		Message:   msg,
		DeviceID:  deviceID,
		CommandID: commandID,
	})
	if err != nil {
		c.logger.Error("recording alert", "error", err)
	}
}

func (c *Controller) countCommand(typ command.Type, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.CommandsTotal.WithLabelValues(string(typ), outcome).Inc()
}
