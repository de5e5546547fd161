package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/common"
	"github.com/dmitrijs2005/ordersync/internal/dbx"
)

const selectColumns = `id, entity_type, entity_local_id, operation, payload, priority,
	attempts, max_attempts, last_attempt, error_message, created_at`

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// WithClock replaces the time source used for created_at and last_attempt.
func (r *SQLiteRepository) WithClock(now func() time.Time) *SQLiteRepository {
	r.now = now
	return r
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.QueueEntry, error) {
	var (
		e           models.QueueEntry
		payload     string
		lastAttempt sql.NullInt64
		errMsg      sql.NullString
		createdAt   int64
	)
	if err := s.Scan(&e.ID, &e.EntityType, &e.EntityLocalID, &e.Operation, &payload, &e.Priority,
		&e.Attempts, &e.MaxAttempts, &lastAttempt, &errMsg, &createdAt); err != nil {
		return nil, err
	}
	e.Payload = json.RawMessage(payload)
	e.LastAttempt = dbx.FromNullMillis(lastAttempt)
	e.ErrorMessage = errMsg.String
	e.CreatedAt = dbx.FromMillis(createdAt)
	return &e, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

// Add enqueues a mutation, coalescing with an existing entry for the same
// entity. It returns the entry id, or Annihilated when a DELETE cancelled a
// pending CREATE.
func (r *SQLiteRepository) Add(ctx context.Context, entityType models.EntityType, localID string,
	op models.Operation, payload json.RawMessage, priority models.Priority) (int64, error) {

	existing, err := r.GetByEntity(ctx, entityType, localID)
	if err != nil {
		return 0, err
	}

	if existing != nil && existing.Operation == models.OpCreate {
		switch op {
		case models.OpDelete:
			if err := r.Remove(ctx, existing.ID); err != nil {
				return 0, err
			}
			return Annihilated, nil
		case models.OpUpdate:
			op = models.OpCreate
		}
	}

	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO sync_queue (entity_type, entity_local_id, operation, payload, priority, max_attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_local_id) DO UPDATE SET
			operation    = excluded.operation,
			payload      = excluded.payload,
			priority     = MIN(sync_queue.priority, excluded.priority),
			max_attempts = MAX(sync_queue.max_attempts, excluded.max_attempts)
		RETURNING id
	`, entityType, localID, op, string(payload), priority, priority.MaxAttempts(), dbx.Millis(r.now())).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %s %s/%s: %w", op, entityType, localID, err)
	}
	return id, nil
}

// Get returns common.ErrLocalNotFound for an unknown id.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.QueueEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM sync_queue WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("queue entry %d: %w", id, common.ErrLocalNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry %d: %w", id, err)
	}
	return e, nil
}

// GetByEntity returns (nil, nil) when the entity has nothing queued.
func (r *SQLiteRepository) GetByEntity(ctx context.Context, entityType models.EntityType, localID string) (*models.QueueEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM sync_queue WHERE entity_type = ? AND entity_local_id = ?`,
		entityType, localID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry for %s/%s: %w", entityType, localID, err)
	}
	return e, nil
}

// GetPending returns non-terminal entries in drain order. maxAttempts further
// caps the per-entry ceiling when positive.
func (r *SQLiteRepository) GetPending(ctx context.Context, maxAttempts int) ([]models.QueueEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM sync_queue WHERE attempts < max_attempts`
	var args []any
	if maxAttempts > 0 {
		query += ` AND attempts < ?`
		args = append(args, maxAttempts)
	}
	query += ` ORDER BY priority ASC, attempts ASC, created_at ASC, id ASC`

	entries, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending queue entries: %w", err)
	}
	return entries, nil
}

// MarkAttempt records the outcome of a push. Success removes the entry and
// returns nil; failure bumps the attempt counter and returns the updated
// entry so the caller can tell whether it became terminal.
func (r *SQLiteRepository) MarkAttempt(ctx context.Context, id int64, success bool, errorMessage string) (*models.QueueEntry, error) {
	if success {
		return nil, r.Remove(ctx, id)
	}
	return r.bump(ctx, id, `attempts + 1`, errorMessage)
}

// MarkDeferred records a failure that must not exhaust the entry: the counter
// grows only up to max_attempts−1.
func (r *SQLiteRepository) MarkDeferred(ctx context.Context, id int64, errorMessage string) (*models.QueueEntry, error) {
	return r.bump(ctx, id, `MIN(attempts + 1, MAX(max_attempts - 1, 0))`, errorMessage)
}

// MarkTerminal exhausts the entry immediately.
func (r *SQLiteRepository) MarkTerminal(ctx context.Context, id int64, errorMessage string) (*models.QueueEntry, error) {
	return r.bump(ctx, id, `max_attempts`, errorMessage)
}

func (r *SQLiteRepository) bump(ctx context.Context, id int64, attemptsExpr string, errorMessage string) (*models.QueueEntry, error) {
	n, err := dbx.RowsAffected(ctx, r.db, `
		UPDATE sync_queue
		SET attempts = `+attemptsExpr+`, last_attempt = ?, error_message = ?
		WHERE id = ?
	`, dbx.Millis(r.now()), errorMessage, id)
	if err != nil {
		return nil, fmt.Errorf("failed to record attempt on queue entry %d: %w", id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("queue entry %d: %w", id, common.ErrLocalNotFound)
	}
	return r.Get(ctx, id)
}

func (r *SQLiteRepository) Remove(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove queue entry %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) RemoveByEntity(ctx context.Context, entityType models.EntityType, localID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE entity_type = ? AND entity_local_id = ?`, entityType, localID)
	if err != nil {
		return fmt.Errorf("failed to remove queue entry for %s/%s: %w", entityType, localID, err)
	}
	return nil
}

// Promote raises the urgency of an entity's entry to at least priority.
// Entities with nothing queued are left alone.
func (r *SQLiteRepository) Promote(ctx context.Context, entityType models.EntityType, localID string, priority models.Priority) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET priority = MIN(priority, ?), max_attempts = MAX(max_attempts, ?)
		WHERE entity_type = ? AND entity_local_id = ?
	`, priority, priority.MaxAttempts(), entityType, localID)
	if err != nil {
		return fmt.Errorf("failed to promote %s/%s: %w", entityType, localID, err)
	}
	return nil
}

// Rebase turns a CREATE into an UPDATE with a fresh retry budget. It is used
// once the remote acknowledged the creation but the row changed meanwhile.
func (r *SQLiteRepository) Rebase(ctx context.Context, entityType models.EntityType, localID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET operation = ?, attempts = 0, last_attempt = NULL, error_message = NULL
		WHERE entity_type = ? AND entity_local_id = ? AND operation = ?
	`, models.OpUpdate, entityType, localID, models.OpCreate)
	if err != nil {
		return fmt.Errorf("failed to rebase %s/%s: %w", entityType, localID, err)
	}
	return nil
}

// ResetAttempts re-admits an entry, terminal or not.
func (r *SQLiteRepository) ResetAttempts(ctx context.Context, id int64) (*models.QueueEntry, error) {
	n, err := dbx.RowsAffected(ctx, r.db, `
		UPDATE sync_queue SET attempts = 0, last_attempt = NULL, error_message = NULL WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reset queue entry %d: %w", id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("queue entry %d: %w", id, common.ErrLocalNotFound)
	}
	return r.Get(ctx, id)
}

// GetErrors lists terminal entries, most recently failed first.
func (r *SQLiteRepository) GetErrors(ctx context.Context) ([]models.QueueEntry, error) {
	entries, err := r.list(ctx, `SELECT `+selectColumns+` FROM sync_queue
		WHERE attempts >= max_attempts ORDER BY last_attempt DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed queue entries: %w", err)
	}
	return entries, nil
}

func (r *SQLiteRepository) GetCounts(ctx context.Context) (models.QueueCounts, error) {
	var c models.QueueCounts
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN attempts < max_attempts THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN attempts >= max_attempts THEN 1 ELSE 0 END), 0)
		FROM sync_queue
	`).Scan(&c.Pending, &c.Errors)
	if err != nil {
		return c, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return c, nil
}

// PurgeTerminal deletes terminal entries whose last attempt is older than
// olderThan and reports how many went away.
func (r *SQLiteRepository) PurgeTerminal(ctx context.Context, olderThan time.Time) (int64, error) {
	n, err := dbx.RowsAffected(ctx, r.db, `
		DELETE FROM sync_queue WHERE attempts >= max_attempts AND last_attempt < ?
	`, dbx.Millis(olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to purge terminal queue entries: %w", err)
	}
	return n, nil
}
