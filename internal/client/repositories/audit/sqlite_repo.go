package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/dbx"
)

const selectColumns = `id, entity_type, entity_id, operation, old_data, new_data,
	conflict_detected, conflict_resolution, user_id, timestamp`

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// WithClock replaces the time source used for entries without a timestamp.
func (r *SQLiteRepository) WithClock(now func() time.Time) *SQLiteRepository {
	r.now = now
	return r
}

func nullJSON(v json.RawMessage) sql.NullString {
	if len(v) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(v), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Record appends e and fills in its ID (and Timestamp when zero).
func (r *SQLiteRepository) Record(ctx context.Context, e *models.AuditEntry) (int64, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, operation, old_data, new_data,
			conflict_detected, conflict_resolution, user_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.EntityType, e.EntityID, e.Operation, nullJSON(e.OldData), nullJSON(e.NewData),
		e.ConflictDetected, nullString(e.ConflictResolution), nullString(e.UserID), dbx.Millis(e.Timestamp))
	if err != nil {
		return 0, fmt.Errorf("failed to record audit %s for %s/%s: %w", e.Operation, e.EntityType, e.EntityID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get audit entry id: %w", err)
	}
	e.ID = id
	return id, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var result []models.AuditEntry
	for rows.Next() {
		var (
			e          models.AuditEntry
			oldData    sql.NullString
			newData    sql.NullString
			resolution sql.NullString
			userID     sql.NullString
			ts         int64
		)
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Operation, &oldData, &newData,
			&e.ConflictDetected, &resolution, &userID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if oldData.Valid {
			e.OldData = json.RawMessage(oldData.String)
		}
		if newData.Valid {
			e.NewData = json.RawMessage(newData.String)
		}
		e.ConflictResolution = resolution.String
		e.UserID = userID.String
		e.Timestamp = dbx.FromMillis(ts)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return result, nil
}

// ListByEntity returns the trail of one entity in insertion order.
func (r *SQLiteRepository) ListByEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]models.AuditEntry, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM audit_log
		WHERE entity_type = ? AND entity_id = ? ORDER BY id ASC`, entityType, entityID)
}

// ListRecent returns the newest entries first.
func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
}

// ListConflicts returns the newest entries that recorded a conflict.
func (r *SQLiteRepository) ListConflicts(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM audit_log
		WHERE conflict_detected = 1 ORDER BY id DESC LIMIT ?`, limit)
}

// LastConflict returns the newest conflict entry of one entity, or nil.
func (r *SQLiteRepository) LastConflict(ctx context.Context, entityType models.EntityType, entityID string) (*models.AuditEntry, error) {
	entries, err := r.list(ctx, `SELECT `+selectColumns+` FROM audit_log
		WHERE entity_type = ? AND entity_id = ? AND conflict_detected = 1 ORDER BY id DESC LIMIT 1`, entityType, entityID)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// ListOlderThan returns what PurgeOlderThan with the same cutoff would delete.
func (r *SQLiteRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]models.AuditEntry, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM audit_log
		WHERE timestamp < ? ORDER BY id ASC`, dbx.Millis(cutoff))
}

// DeleteEntity drops the whole trail of an entity the remote never saw.
func (r *SQLiteRepository) DeleteEntity(ctx context.Context, entityType models.EntityType, entityID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM audit_log WHERE entity_type = ? AND entity_id = ?`, entityType, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete audit trail of %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

func (r *SQLiteRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := dbx.RowsAffected(ctx, r.db, `DELETE FROM audit_log WHERE timestamp < ?`, dbx.Millis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit entries: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return n, nil
}
