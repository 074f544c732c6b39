package simulator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stflabs/warehouse-core/internal/infrastructure/logging"
	"github.com/stflabs/warehouse-core/internal/layout"
)

// ErrDeviceNotFound is returned when a device has no persisted state row.
var ErrDeviceNotFound = errors.New("simulator: device state not found")

// PersistedState is one row of the device_states table: the last known
// pose and status of a device, surviving restarts.
type PersistedState struct {
	DeviceID  string
	X, Y      float64
	VX, VY    float64
	State     State
	Fault     string
	UpdatedAt time.Time
}

// StateRepository persists device state snapshots.
type StateRepository interface {
	Save(ctx context.Context, s PersistedState) error
	Get(ctx context.Context, deviceID string) (*PersistedState, error)
	List(ctx context.Context) ([]PersistedState, error)
}

// SQLiteStateRepository implements StateRepository on the shared handle.
type SQLiteStateRepository struct {
	db *sql.DB
}

// NewSQLiteStateRepository creates a state repository backed by the given
// database handle.
func NewSQLiteStateRepository(db *sql.DB) *SQLiteStateRepository {
	return &SQLiteStateRepository{db: db}
}

// Save upserts the device's state row.
func (r *SQLiteStateRepository) Save(ctx context.Context, s PersistedState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_states (device_id, x, y, vx, vy, status, fault, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET
			x = excluded.x, y = excluded.y,
			vx = excluded.vx, vy = excluded.vy,
			status = excluded.status, fault = excluded.fault,
			updated_at = excluded.updated_at`,
		s.DeviceID, s.X, s.Y, s.VX, s.VY, string(s.State), s.Fault, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save device state: %w", err)
	}
	return nil
}

// Get returns the persisted state of one device.
func (r *SQLiteStateRepository) Get(ctx context.Context, deviceID string) (*PersistedState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT device_id, x, y, vx, vy, status, fault, updated_at
		FROM device_states WHERE device_id = ?`, deviceID)

	s, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return s, err
}

// List returns every persisted device state, ordered by device id.
func (r *SQLiteStateRepository) List(ctx context.Context) ([]PersistedState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, x, y, vx, vy, status, fault, updated_at
		FROM device_states ORDER BY device_id`)
	if err != nil {
		return nil, fmt.Errorf("query device states: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only iteration

	var states []PersistedState
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device states: %w", err)
	}
	return states, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (*PersistedState, error) {
	var s PersistedState
	err := row.Scan(&s.DeviceID, &s.X, &s.Y, &s.VX, &s.VY,
		(*string)(&s.State), &s.Fault, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// StartPosition returns where a device should come up: its persisted
// position if one exists, otherwise the fallback.
func StartPosition(ctx context.Context, repo StateRepository, deviceID string, fallback layout.Position) layout.Position {
	if repo == nil {
		return fallback
	}
	s, err := repo.Get(ctx, deviceID)
	if err != nil {
		return fallback
	}
	return layout.Position{X: s.X, Y: s.Y}
}

// Persister periodically snapshots a set of devices into the state
// repository so positions survive restarts.
type Persister struct {
	repo     StateRepository
	devices  []*Device
	interval time.Duration
	logger   *logging.Logger
}

// NewPersister creates a persister saving snapshots at the given interval.
func NewPersister(repo StateRepository, devices []*Device, interval time.Duration, logger *logging.Logger) *Persister {
	if logger == nil {
		logger = logging.Default()
	}
	return &Persister{repo: repo, devices: devices, interval: interval, logger: logger}
}

// Run blocks, saving snapshots until ctx is cancelled. A final snapshot is
// written on the way out.
func (p *Persister) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.saveAll(context.Background())
			return ctx.Err()
		case <-ticker.C:
			p.saveAll(ctx)
		}
	}
}

func (p *Persister) saveAll(ctx context.Context) {
	for _, dev := range p.devices {
		snap := dev.Snapshot()
		err := p.repo.Save(ctx, PersistedState{
			DeviceID: snap.DeviceID,
			X:        snap.X, Y: snap.Y,
			VX: snap.VX, VY: snap.VY,
			State: snap.State,
			Fault: snap.Fault,
		})
		if err != nil {
			p.logger.Warn("persist device state", "device", snap.DeviceID, "error", err)
		}
	}
}
