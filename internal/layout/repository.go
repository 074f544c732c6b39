package layout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SlotRepository defines persistence for inventory slot occupancy.
// Coordinates are immutable after seeding; only the occupant changes.
type SlotRepository interface {
	// Get retrieves a slot by name.
	// Returns ErrSlotNotFound if the slot does not exist.
	Get(ctx context.Context, name string) (*Slot, error)

	// List retrieves all slots ordered by name.
	List(ctx context.Context) ([]Slot, error)

	// SetOccupant stores a carrier reference into an empty slot.
	// Returns ErrSlotOccupied if the slot already holds one.
	SetOccupant(ctx context.Context, name, occupant string) error

	// ClearOccupant removes the carrier reference from a slot.
	// Returns ErrSlotEmpty if the slot holds none.
	ClearOccupant(ctx context.Context, name string) error
}

// SQLiteSlotRepository implements SlotRepository using SQLite.
type SQLiteSlotRepository struct {
	db *sql.DB
}

// NewSQLiteSlotRepository creates a new SQLite-backed slot repository.
func NewSQLiteSlotRepository(db *sql.DB) *SQLiteSlotRepository {
	return &SQLiteSlotRepository{db: db}
}

// Get retrieves a slot by name.
func (r *SQLiteSlotRepository) Get(ctx context.Context, name string) (*Slot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT slot_name, x_pos, y_pos, occupant, updated_at
		FROM inventory_slots
		WHERE slot_name = ?`, name)

	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrSlotNotFound, name)
		}
		return nil, fmt.Errorf("querying slot: %w", err)
	}
	return slot, nil
}

// List retrieves all slots ordered by name.
func (r *SQLiteSlotRepository) List(ctx context.Context) ([]Slot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT slot_name, x_pos, y_pos, occupant, updated_at
		FROM inventory_slots
		ORDER BY slot_name`)
	if err != nil {
		return nil, fmt.Errorf("querying slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning slot: %w", err)
		}
		slots = append(slots, *slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating slots: %w", err)
	}
	return slots, nil
}

// SetOccupant stores a carrier reference into an empty slot.
// The occupancy check and write are one statement, so two concurrent
// stores into the same slot cannot both succeed.
func (r *SQLiteSlotRepository) SetOccupant(ctx context.Context, name, occupant string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE inventory_slots
		SET occupant = ?, updated_at = ?
		WHERE slot_name = ? AND occupant IS NULL`,
		occupant, time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("setting occupant: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		// Distinguish "no such slot" from "already occupied".
		if _, getErr := r.Get(ctx, name); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: %q", ErrSlotOccupied, name)
	}
	return nil
}

// ClearOccupant removes the carrier reference from a slot.
func (r *SQLiteSlotRepository) ClearOccupant(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE inventory_slots
		SET occupant = NULL, updated_at = ?
		WHERE slot_name = ? AND occupant IS NOT NULL`,
		time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("clearing occupant: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.Get(ctx, name); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: %q", ErrSlotEmpty, name)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanSlot.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSlot scans one inventory_slots row.
func scanSlot(row rowScanner) (*Slot, error) {
	var (
		slot     Slot
		occupant sql.NullString
	)
	if err := row.Scan(&slot.Name, &slot.Position.X, &slot.Position.Y, &occupant, &slot.UpdatedAt); err != nil {
		return nil, err
	}
	if occupant.Valid {
		slot.Occupant = &occupant.String
	}
	return &slot, nil
}
