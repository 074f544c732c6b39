package alert

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository is the persistence contract for alerts.
type Repository interface {
	Create(ctx context.Context, a Alert) (int64, error)
	List(ctx context.Context, limit int) ([]Alert, error)
	ListBySeverity(ctx context.Context, severity Severity, limit int) ([]Alert, error)
}

// SQLiteRepository implements Repository on the shared SQLite handle.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates an alert repository backed by the given
// database handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create persists a new alert and returns its id. CreatedAt is stamped
// here; any value on the input is ignored.
func (r *SQLiteRepository) Create(ctx context.Context, a Alert) (int64, error) {
	if !a.Severity.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSeverity, a.Severity)
	}
	if a.Message == "" {
		return 0, ErrEmptyMessage
	}

	var deviceID, commandID any
	if a.DeviceID != "" {
		deviceID = a.DeviceID
	}
	if a.CommandID != 0 {
		commandID = a.CommandID
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (severity, message, device_id, command_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(a.Severity), a.Message, deviceID, commandID, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert alert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// List returns the most recent alerts, newest first. A limit of zero or
// less defaults to 100.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Alert, error) {
	return r.list(ctx, `
		SELECT id, severity, message, device_id, command_id, created_at
		FROM alerts
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, normaliseLimit(limit))
}

// ListBySeverity returns the most recent alerts at the given severity,
// newest first.
func (r *SQLiteRepository) ListBySeverity(ctx context.Context, severity Severity, limit int) ([]Alert, error) {
	if !severity.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeverity, severity)
	}
	return r.list(ctx, `
		SELECT id, severity, message, device_id, command_id, created_at
		FROM alerts
		WHERE severity = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, string(severity), normaliseLimit(limit))
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only iteration

	var alerts []Alert
	for rows.Next() {
		var (
			a         Alert
			deviceID  sql.NullString
			commandID sql.NullInt64
		)
		err := rows.Scan(&a.ID, (*string)(&a.Severity), &a.Message,
			&deviceID, &commandID, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.DeviceID = deviceID.String
		a.CommandID = commandID.Int64
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

func normaliseLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
