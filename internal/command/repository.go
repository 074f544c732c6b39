package command

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Queue is the durable command queue contract.
//
// Producers call Enqueue and Get; the controller owns the remaining
// operations. Implementations must survive process restarts without
// losing PENDING commands.
type Queue interface {
	Enqueue(ctx context.Context, typ Type, target string, payload map[string]any) (int64, error)
	DequeuePending(ctx context.Context) (*Command, error)
	PendingEmergencyStop(ctx context.Context) (*Command, error)
	Get(ctx context.Context, id int64) (*Command, error)
	MarkInProgress(ctx context.Context, id int64) error
	MarkCompleted(ctx context.Context, id int64, message string) error
	MarkFailed(ctx context.Context, id int64, message string) error
	FailInFlight(ctx context.Context, message string) (int64, error)
	CountInProgress(ctx context.Context) (int, error)
}

// SQLiteQueue implements Queue on the shared SQLite handle.
//
// The single-connection pool serialises writers, so guarded UPDATE
// statements are sufficient to enforce the transition rules without
// explicit transactions.
type SQLiteQueue struct {
	db *sql.DB
}

// NewSQLiteQueue creates a queue backed by the given database handle.
func NewSQLiteQueue(db *sql.DB) *SQLiteQueue {
	return &SQLiteQueue{db: db}
}

// Enqueue inserts a new PENDING command and returns its id.
func (q *SQLiteQueue) Enqueue(ctx context.Context, typ Type, target string, payload map[string]any) (int64, error) {
	if !typ.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}

	payloadJSON := "{}"
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal payload: %w", err)
		}
		payloadJSON = string(data)
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO commands (type, target, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(typ), target, payloadJSON, string(StatusPending), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert command: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// DequeuePending returns the oldest PENDING command without changing its
// status. Ordering is by created_at, ties broken by id, so the queue is
// strictly FIFO. Returns ErrQueueEmpty when nothing is pending.
func (q *SQLiteQueue) DequeuePending(ctx context.Context) (*Command, error) {
	row := q.db.QueryRowContext(ctx, selectCommand+`
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1`, string(StatusPending))

	cmd, err := scanCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQueueEmpty
	}
	return cmd, err
}

// PendingEmergencyStop returns the oldest PENDING EMERGENCY_STOP command,
// or ErrQueueEmpty when there is none. Emergency stops bypass normal FIFO
// order, so the controller checks this before DequeuePending.
func (q *SQLiteQueue) PendingEmergencyStop(ctx context.Context) (*Command, error) {
	row := q.db.QueryRowContext(ctx, selectCommand+`
		WHERE status = ? AND type = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1`, string(StatusPending), string(TypeEmergencyStop))

	cmd, err := scanCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQueueEmpty
	}
	return cmd, err
}

// Get returns the command with the given id.
func (q *SQLiteQueue) Get(ctx context.Context, id int64) (*Command, error) {
	row := q.db.QueryRowContext(ctx, selectCommand+` WHERE id = ?`, id)

	cmd, err := scanCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrCommandNotFound, id)
	}
	return cmd, err
}

// MarkInProgress transitions a PENDING command to IN_PROGRESS and stamps
// executed_at. Fails with ErrBusy if any other command is already
// IN_PROGRESS, and with ErrBadTransition if the command is not PENDING.
func (q *SQLiteQueue) MarkInProgress(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE commands
		SET status = ?, executed_at = ?
		WHERE id = ? AND status = ?
		  AND NOT EXISTS (SELECT 1 FROM commands WHERE status = ?)`,
		string(StatusInProgress), time.Now().UTC(), id,
		string(StatusPending), string(StatusInProgress),
	)
	if err != nil {
		return fmt.Errorf("mark in progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	// Distinguish the failure: missing row, wrong status, or queue busy.
	cmd, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	if cmd.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, cmd.Status, StatusInProgress)
	}
	return ErrBusy
}

// MarkCompleted transitions an IN_PROGRESS command to COMPLETED.
func (q *SQLiteQueue) MarkCompleted(ctx context.Context, id int64, message string) error {
	return q.finish(ctx, id, StatusCompleted, message)
}

// MarkFailed transitions an IN_PROGRESS command to FAILED.
func (q *SQLiteQueue) MarkFailed(ctx context.Context, id int64, message string) error {
	return q.finish(ctx, id, StatusFailed, message)
}

func (q *SQLiteQueue) finish(ctx context.Context, id int64, status Status, message string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE commands
		SET status = ?, message = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		string(status), message, time.Now().UTC(),
		id, string(StatusInProgress),
	)
	if err != nil {
		return fmt.Errorf("mark %s: %w", status, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	cmd, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrBadTransition, cmd.Status, status)
}

// FailInFlight marks every IN_PROGRESS command FAILED with the given
// message and returns how many rows changed. Called once at controller
// startup: a command that was mid-execution when the process died cannot
// be resumed, because the device-side progress is unknown.
func (q *SQLiteQueue) FailInFlight(ctx context.Context, message string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE commands
		SET status = ?, message = ?, completed_at = ?
		WHERE status = ?`,
		string(StatusFailed), message, time.Now().UTC(),
		string(StatusInProgress),
	)
	if err != nil {
		return 0, fmt.Errorf("fail in-flight: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// CountInProgress returns the number of IN_PROGRESS commands. The queue
// invariant keeps this at zero or one.
func (q *SQLiteQueue) CountInProgress(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM commands WHERE status = ?`,
		string(StatusInProgress),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count in progress: %w", err)
	}
	return n, nil
}

const selectCommand = `
	SELECT id, type, target, payload, status, message,
	       created_at, executed_at, completed_at
	FROM commands`

// rowScanner abstracts *sql.Row and *sql.Rows for scanCommand.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(row rowScanner) (*Command, error) {
	var (
		cmd         Command
		payload     string
		executedAt  sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(&cmd.ID, (*string)(&cmd.Type), &cmd.Target, &payload,
		(*string)(&cmd.Status), &cmd.Message,
		&cmd.CreatedAt, &executedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if payload != "" && payload != "{}" {
		if err := json.Unmarshal([]byte(payload), &cmd.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for command %d: %w", cmd.ID, err)
		}
	}
	if executedAt.Valid {
		t := executedAt.Time
		cmd.ExecutedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		cmd.CompletedAt = &t
	}
	return &cmd, nil
}
