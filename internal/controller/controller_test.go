package controller

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/stflabs/warehouse-core/migrations"

	"github.com/stflabs/warehouse-core/internal/alert"
	"github.com/stflabs/warehouse-core/internal/bus"
	"github.com/stflabs/warehouse-core/internal/command"
	"github.com/stflabs/warehouse-core/internal/infrastructure/config"
	"github.com/stflabs/warehouse-core/internal/infrastructure/database"
	"github.com/stflabs/warehouse-core/internal/interlock"
	"github.com/stflabs/warehouse-core/internal/layout"
	"github.com/stflabs/warehouse-core/internal/simulator"
)

// fakeVGR acks bus commands instantly, without physics. Mode flags select
// the failure scenario under test.
type fakeVGR struct {
	b bus.Bus

	mu        sync.Mutex
	silent    bool
	failMsg   string
	moves     int
	grips     int
	x, y      float64
}

func newFakeVGR(t *testing.T, b bus.Bus) *fakeVGR {
	t.Helper()
	f := &fakeVGR{b: b}

	if _, err := b.Subscribe(bus.DeviceCommandTopic("vgr", bus.VerbMove), f.onMove); err != nil {
		t.Fatalf("Subscribe(move) error = %v", err)
	}
	if _, err := b.Subscribe(bus.DeviceCommandTopic("vgr", bus.VerbGrip), f.onGrip); err != nil {
		t.Fatalf("Subscribe(grip) error = %v", err)
	}
	return f
}

func (f *fakeVGR) onMove(_ string, payload []byte) {
	var cmd simulator.MoveCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return
	}

	f.mu.Lock()
	f.moves++
	silent, failMsg := f.silent, f.failMsg
	if !silent && failMsg == "" {
		f.x, f.y = cmd.X, cmd.Y
	}
	f.mu.Unlock()

	f.ack(cmd.RequestID, silent, failMsg)
}

func (f *fakeVGR) onGrip(_ string, payload []byte) {
	var cmd simulator.GripCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return
	}

	f.mu.Lock()
	f.grips++
	silent, failMsg := f.silent, f.failMsg
	f.mu.Unlock()

	f.ack(cmd.RequestID, silent, failMsg)
}

func (f *fakeVGR) ack(requestID string, silent bool, failMsg string) {
	if silent {
		return
	}

	f.mu.Lock()
	status := simulator.Status{
		DeviceID: "vgr",
		State:    simulator.StateIdle,
		X:        f.x,
		Y:        f.y,
	}
	f.mu.Unlock()

	if failMsg != "" {
		status.LastError = &simulator.Error{RequestID: requestID, Reason: failMsg}
	} else {
		status.LastCompleted = requestID
	}

	payload, _ := json.Marshal(status)
	f.b.Publish(bus.DeviceStatusTopic("vgr"), payload) //nolint:errcheck // Test fake
}

func (f *fakeVGR) moveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.moves
}

// rig wires a controller against real SQLite repositories, a memory bus
// and a fake device, and runs it in the background.
type rig struct {
	queue  *command.SQLiteQueue
	slots  *layout.SQLiteSlotRepository
	alerts *alert.SQLiteRepository
	guard  *interlock.Guard
	bus    *bus.MemoryBus
	vgr    *fakeVGR
}

func newRig(t *testing.T) *rig {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "rig.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	b := bus.NewMemoryBus()
	t.Cleanup(func() { b.Close() }) //nolint:errcheck // Test cleanup

	r := &rig{
		queue:  command.NewSQLiteQueue(db.DB),
		slots:  layout.NewSQLiteSlotRepository(db.DB),
		alerts: alert.NewSQLiteRepository(db.DB),
		guard:  interlock.NewGuard(25, nil),
		bus:    b,
		vgr:    newFakeVGR(t, b),
	}
	return r
}

// start launches the controller loop; it stops with the test.
func (r *rig) start(t *testing.T) {
	t.Helper()

	ctrl := New(Options{
		Queue:  r.queue,
		Slots:  r.slots,
		Alerts: r.alerts,
		Guard:  r.guard,
		Bus:    r.bus,
		Config: config.ControllerConfig{PollInterval: 10, StepTimeout: 1},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Run(ctx) //nolint:errcheck // Exits via cancellation
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// waitTerminal polls until the command reaches a terminal status.
func (r *rig) waitTerminal(t *testing.T, id int64) *command.Command {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		cmd, err := r.queue.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get(%d) error = %v", id, err)
		}
		if cmd.Status.Terminal() {
			return cmd
		}
		select {
		case <-deadline:
			t.Fatalf("command %d not terminal, status = %s", id, cmd.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestController_StoreCompletes(t *testing.T) {
	r := newRig(t)
	r.start(t)
	ctx := context.Background()

	id, err := r.queue.Enqueue(ctx, command.TypeStore, "A1", map[string]any{"carrier": "box-1"})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	cmd := r.waitTerminal(t, id)
	if cmd.Status != command.StatusCompleted {
		t.Fatalf("status = %s (%s), want COMPLETED", cmd.Status, cmd.Message)
	}
	if cmd.Message != "stored box-1 in A1" {
		t.Errorf("message = %q", cmd.Message)
	}
	if cmd.ExecutedAt == nil || cmd.CompletedAt == nil {
		t.Error("execution timestamps not stamped")
	}

	// The full plan ran: pickup move, grab, slot move, release.
	if moves := r.vgr.moveCount(); moves != 2 {
		t.Errorf("device saw %d moves, want 2", moves)
	}

	slot, err := r.slots.Get(ctx, "A1")
	if err != nil {
		t.Fatalf("Get(A1) error = %v", err)
	}
	if !slot.Occupied() || *slot.Occupant != "box-1" {
		t.Errorf("A1 occupant = %v, want box-1", slot.Occupant)
	}
}

func TestController_StoreThenRetrieve(t *testing.T) {
	r := newRig(t)
	r.start(t)
	ctx := context.Background()

	storeID, _ := r.queue.Enqueue(ctx, command.TypeStore, "B2", map[string]any{"carrier": "box-9"})
	if cmd := r.waitTerminal(t, storeID); cmd.Status != command.StatusCompleted {
		t.Fatalf("store status = %s (%s)", cmd.Status, cmd.Message)
	}

	retrieveID, _ := r.queue.Enqueue(ctx, command.TypeRetrieve, "B2", nil)
	cmd := r.waitTerminal(t, retrieveID)
	if cmd.Status != command.StatusCompleted {
		t.Fatalf("retrieve status = %s (%s)", cmd.Status, cmd.Message)
	}
	if cmd.Message != "retrieved box-9 from B2" {
		t.Errorf("message = %q", cmd.Message)
	}

	slot, _ := r.slots.Get(ctx, "B2")
	if slot.Occupied() {
		t.Errorf("B2 still occupied after retrieve: %v", *slot.Occupant)
	}
}

func TestController_InvalidCommands(t *testing.T) {
	r := newRig(t)
	r.start(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		typ     command.Type
		target  string
		payload map[string]any
		wantMsg string
	}{
		{"retrieve empty slot", command.TypeRetrieve, "A1", nil, "empty"},
		{"store to zone", command.TypeStore, "PICKUP", nil, "not a storage slot"},
		{"move unknown target", command.TypeMove, "MEZZANINE", nil, "unknown target"},
		{"move unknown device", command.TypeMove, "A1", map[string]any{"device": "forklift"}, "unknown device"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := r.queue.Enqueue(ctx, tt.typ, tt.target, tt.payload)
			if err != nil {
				t.Fatalf("Enqueue() error = %v", err)
			}
			cmd := r.waitTerminal(t, id)
			if cmd.Status != command.StatusFailed {
				t.Fatalf("status = %s, want FAILED", cmd.Status)
			}
			if !strings.Contains(cmd.Message, tt.wantMsg) {
				t.Errorf("message = %q, want substring %q", cmd.Message, tt.wantMsg)
			}
		})
	}

	// Validation failures never reach the device.
	if moves := r.vgr.moveCount(); moves != 0 {
		t.Errorf("device saw %d moves from invalid commands", moves)
	}
}

func TestController_InterlockRejection(t *testing.T) {
	r := newRig(t)

	// Another device holds the envelope around A1 before the controller
	// starts its move.
	if err := r.guard.Reserve("hbw", layout.Position{X: 100, Y: 100}, layout.Position{X: 100, Y: 100}); err != nil {
		t.Fatalf("pre-reserve error = %v", err)
	}
	r.start(t)

	id, _ := r.queue.Enqueue(context.Background(), command.TypeMove, "A1", nil)
	cmd := r.waitTerminal(t, id)

	if cmd.Status != command.StatusFailed {
		t.Fatalf("status = %s, want FAILED", cmd.Status)
	}
	if !strings.Contains(cmd.Message, "interlock") {
		t.Errorf("message = %q, want interlock rejection", cmd.Message)
	}
	// Nothing was published: the device never saw the move.
	if moves := r.vgr.moveCount(); moves != 0 {
		t.Errorf("device saw %d moves despite rejection", moves)
	}
}

func TestController_DeviceTimeout(t *testing.T) {
	r := newRig(t)
	r.vgr.mu.Lock()
	r.vgr.silent = true
	r.vgr.mu.Unlock()
	r.start(t)

	id, _ := r.queue.Enqueue(context.Background(), command.TypeMove, "HOME", nil)
	cmd := r.waitTerminal(t, id)

	if cmd.Status != command.StatusFailed {
		t.Fatalf("status = %s, want FAILED", cmd.Status)
	}
	if !strings.Contains(cmd.Message, "timeout") {
		t.Errorf("message = %q, want device timeout", cmd.Message)
	}
}

func TestController_DeviceFault(t *testing.T) {
	r := newRig(t)
	r.vgr.mu.Lock()
	r.vgr.failMsg = "axis jam"
	r.vgr.mu.Unlock()
	r.start(t)
	ctx := context.Background()

	id, _ := r.queue.Enqueue(ctx, command.TypeMove, "C3", nil)
	cmd := r.waitTerminal(t, id)

	if cmd.Status != command.StatusFailed {
		t.Fatalf("status = %s, want FAILED", cmd.Status)
	}
	if !strings.Contains(cmd.Message, "axis jam") {
		t.Errorf("message = %q, want fault reason", cmd.Message)
	}

	// A HIGH severity alert was recorded against the command.
	alerts, err := r.alerts.ListBySeverity(ctx, alert.SeverityHigh, 0)
	if err != nil {
		t.Fatalf("ListBySeverity() error = %v", err)
	}
	if len(alerts) != 1 || alerts[0].CommandID != id {
		t.Errorf("alerts = %+v, want one for command %d", alerts, id)
	}
}

func TestController_EstopPreemptsWait(t *testing.T) {
	r := newRig(t)
	r.vgr.mu.Lock()
	r.vgr.silent = true
	r.vgr.mu.Unlock()
	r.start(t)
	ctx := context.Background()

	id, _ := r.queue.Enqueue(ctx, command.TypeMove, "C3", nil)

	// Wait until the move is dispatched and the controller is in its ack
	// wait, then fire the estop on the bus.
	deadline := time.After(2 * time.Second)
	for r.vgr.moveCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("move never dispatched")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if err := r.bus.Publish(bus.GlobalCommandTopic(bus.VerbEstop), []byte(`{"reason":"test"}`)); err != nil {
		t.Fatalf("Publish(estop) error = %v", err)
	}

	cmd := r.waitTerminal(t, id)
	if cmd.Status != command.StatusFailed {
		t.Fatalf("status = %s, want FAILED", cmd.Status)
	}
	if !strings.Contains(cmd.Message, "emergency stop") {
		t.Errorf("message = %q, want emergency stop", cmd.Message)
	}

	// The preemption is a CRITICAL event.
	alerts, err := r.alerts.ListBySeverity(ctx, alert.SeverityCritical, 0)
	if err != nil {
		t.Fatalf("ListBySeverity() error = %v", err)
	}
	if len(alerts) == 0 {
		t.Error("no critical alert recorded for estop preemption")
	}
}

func TestController_QueuedEstopBypassesFIFO(t *testing.T) {
	r := newRig(t)
	r.vgr.mu.Lock()
	r.vgr.silent = true
	r.vgr.mu.Unlock()

	ctx := context.Background()
	storeID, _ := r.queue.Enqueue(ctx, command.TypeStore, "A1", nil)
	estopID, _ := r.queue.Enqueue(ctx, command.TypeEmergencyStop, "", nil)

	estopSeen := make(chan struct{}, 1)
	r.bus.Subscribe(bus.GlobalCommandTopic(bus.VerbEstop), func(_ string, _ []byte) { //nolint:errcheck
		select {
		case estopSeen <- struct{}{}:
		default:
		}
	})

	r.start(t)

	// The estop completes first even though the store was enqueued first.
	cmd := r.waitTerminal(t, estopID)
	if cmd.Status != command.StatusCompleted {
		t.Fatalf("estop status = %s (%s), want COMPLETED", cmd.Status, cmd.Message)
	}
	select {
	case <-estopSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("estop never broadcast on the bus")
	}

	store, _ := r.queue.Get(ctx, storeID)
	if store.Status == command.StatusCompleted {
		t.Errorf("store completed despite estop bypass")
	}
}

func TestController_RestartFailsInFlight(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	// A command left IN_PROGRESS by a dead process.
	id, _ := r.queue.Enqueue(ctx, command.TypeMove, "A1", nil)
	if err := r.queue.MarkInProgress(ctx, id); err != nil {
		t.Fatalf("MarkInProgress() error = %v", err)
	}

	r.start(t)

	cmd := r.waitTerminal(t, id)
	if cmd.Status != command.StatusFailed || cmd.Message != "controller restarted" {
		t.Errorf("reconciled command = %s %q, want FAILED controller restarted", cmd.Status, cmd.Message)
	}
}
