package entities

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/ordersync/internal/client/cache"
	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/audit"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/queue"
	"github.com/dmitrijs2005/ordersync/internal/common"
	"github.com/dmitrijs2005/ordersync/internal/dbx"
)

const metaColumns = `local_id, server_id, version, sync_status, sync_error, last_synced_at, created_at, updated_at`

// Options carries the collaborators shared by all repositories.
type Options struct {
	// Now is the clock; time.Now when nil.
	Now func() time.Time
	// NewID generates local ids; random UUIDs when nil.
	NewID func() string
	// UserID names the operator in audit entries; may be nil.
	UserID func() string
	// Cache enables the background refresh of List; nil disables it.
	Cache *cache.Refresher
	// Fetcher reads remote collections for Pull and List.
	Fetcher Fetcher
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.NewString() }
	}
	if o.UserID == nil {
		o.UserID = func() string { return "" }
	}
	return o
}

// record is satisfied by the pointer type of every entity.
type record[T any] interface {
	*T
	models.Entity
}

// schema maps one entity type onto its table and its wire format.
type schema[T any, P record[T]] struct {
	kind    models.EntityType
	columns []string
	values  func(P) []any
	dests   func(P) []any
	search  []string

	// normalize brings time fields to the stored precision; may be nil.
	normalize func(P)

	toRemote     func(P) any
	decodeRemote func([]byte) (P, error)
}

// Store is the generic repository. Typed repositories embed it and add
// typed Create and Update.
type Store[T any, P record[T]] struct {
	db     *sql.DB
	schema schema[T, P]
	opts   Options
}

func newStore[T any, P record[T]](db *sql.DB, s schema[T, P], opts Options) *Store[T, P] {
	return &Store[T, P]{db: db, schema: s, opts: opts.withDefaults()}
}

func (s *Store[T, P]) normalize(p P) {
	if s.schema.normalize != nil {
		s.schema.normalize(p)
	}
}

// storedTime truncates t to what a millisecond column keeps.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func storedTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := storedTime(*t)
	return &v
}

// Kind names the entity type this store holds.
func (s *Store[T, P]) Kind() models.EntityType { return s.schema.kind }

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store[T, P]) selectSQL() string {
	return `SELECT ` + metaColumns + `, ` + strings.Join(s.schema.columns, ", ") + ` FROM ` + s.schema.kind.Table()
}

func (s *Store[T, P]) scan(sc scanner) (P, error) {
	p := P(new(T))
	m := p.Meta()
	dests := []any{
		&m.LocalID,
		dbx.ScanNullInt64(&m.ServerID),
		&m.Version,
		&m.SyncStatus,
		dbx.ScanNullString(&m.SyncError),
		dbx.ScanNullMillis(&m.LastSyncedAt),
		dbx.ScanMillis(&m.CreatedAt),
		dbx.ScanMillis(&m.UpdatedAt),
	}
	if err := sc.Scan(append(dests, s.schema.dests(p)...)...); err != nil {
		return nil, err
	}
	return p, nil
}

func metaValues(m *models.SyncMeta) []any {
	return []any{
		m.LocalID,
		dbx.NullInt64(m.ServerID),
		m.Version,
		m.SyncStatus,
		dbx.NullString(m.SyncError),
		dbx.NullMillis(m.LastSyncedAt),
		dbx.Millis(m.CreatedAt),
		dbx.Millis(m.UpdatedAt),
	}
}

func (s *Store[T, P]) get(ctx context.Context, q dbx.DBTX, localID string) (P, error) {
	p, err := s.scan(q.QueryRowContext(ctx, s.selectSQL()+` WHERE local_id = ?`, localID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", s.schema.kind, localID, common.ErrLocalNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", s.schema.kind, localID, err)
	}
	return p, nil
}

// getByServerID returns (nil, nil) when no row carries serverID.
func (s *Store[T, P]) getByServerID(ctx context.Context, q dbx.DBTX, serverID int64) (P, error) {
	p, err := s.scan(q.QueryRowContext(ctx, s.selectSQL()+` WHERE server_id = ?`, serverID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s by server id %d: %w", s.schema.kind, serverID, err)
	}
	return p, nil
}

func (s *Store[T, P]) query(ctx context.Context, where string, args ...any) ([]P, error) {
	rows, err := s.db.QueryContext(ctx, s.selectSQL()+` `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.schema.kind, err)
	}
	defer rows.Close()

	var result []P
	for rows.Next() {
		p, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", s.schema.kind, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", s.schema.kind, err)
	}
	return result, nil
}

func (s *Store[T, P]) insert(ctx context.Context, q dbx.DBTX, p P) error {
	cols := metaColumns + ", " + strings.Join(s.schema.columns, ", ")
	args := append(metaValues(p.Meta()), s.schema.values(p)...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

	_, err := q.ExecContext(ctx,
		`INSERT INTO `+s.schema.kind.Table()+` (`+cols+`) VALUES (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to insert %s %s: %w", s.schema.kind, p.Meta().LocalID, err)
	}
	return nil
}

// write stores every column of p over the row with the same local id.
func (s *Store[T, P]) write(ctx context.Context, q dbx.DBTX, p P) error {
	sets := []string{"server_id = ?", "version = ?", "sync_status = ?", "sync_error = ?",
		"last_synced_at = ?", "created_at = ?", "updated_at = ?"}
	for _, c := range s.schema.columns {
		sets = append(sets, c+" = ?")
	}
	m := p.Meta()
	args := append(metaValues(m)[1:], s.schema.values(p)...)
	args = append(args, m.LocalID)

	_, err := q.ExecContext(ctx,
		`UPDATE `+s.schema.kind.Table()+` SET `+strings.Join(sets, ", ")+` WHERE local_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to write %s %s: %w", s.schema.kind, m.LocalID, err)
	}
	return nil
}

func (s *Store[T, P]) setStatus(ctx context.Context, q dbx.DBTX, localID string, status models.SyncStatus, syncError string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE `+s.schema.kind.Table()+` SET sync_status = ?, sync_error = ? WHERE local_id = ?`,
		status, dbx.NullString(syncError), localID)
	if err != nil {
		return fmt.Errorf("failed to set status of %s %s: %w", s.schema.kind, localID, err)
	}
	return nil
}

func (s *Store[T, P]) remove(ctx context.Context, q dbx.DBTX, localID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM `+s.schema.kind.Table()+` WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", s.schema.kind, localID, err)
	}
	return nil
}

func snapshot(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return b, nil
}

func (s *Store[T, P]) record(ctx context.Context, q dbx.DBTX, e models.AuditEntry) error {
	e.EntityType = s.schema.kind
	e.UserID = s.opts.UserID()
	e.Timestamp = s.opts.Now().UTC()
	_, err := audit.NewSQLiteRepository(q).Record(ctx, &e)
	return err
}

func (s *Store[T, P]) queue(q dbx.DBTX) *queue.SQLiteRepository {
	return queue.NewSQLiteRepository(q).WithClock(s.opts.Now)
}

// GetAll returns every visible row; rows waiting for a remote delete are hidden.
func (s *Store[T, P]) GetAll(ctx context.Context) ([]P, error) {
	return s.query(ctx, `WHERE sync_status != ? ORDER BY created_at ASC, local_id ASC`, models.StatusPendingDelete)
}

// GetByID returns common.ErrLocalNotFound for unknown ids.
func (s *Store[T, P]) GetByID(ctx context.Context, localID string) (P, error) {
	return s.get(ctx, s.db, localID)
}

// GetByStatus lists rows in the given state, including pending deletes.
func (s *Store[T, P]) GetByStatus(ctx context.Context, status models.SyncStatus) ([]P, error) {
	return s.query(ctx, `WHERE sync_status = ? ORDER BY created_at ASC, local_id ASC`, status)
}

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches term case-insensitively against the text columns of the type.
func (s *Store[T, P]) Search(ctx context.Context, term string) ([]P, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.GetAll(ctx)
	}
	like := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
	conds := make([]string, 0, len(s.schema.search))
	args := []any{models.StatusPendingDelete}
	for _, c := range s.schema.search {
		conds = append(conds, "LOWER("+c+`) LIKE ? ESCAPE '\'`)
		args = append(args, like)
	}
	return s.query(ctx, `WHERE sync_status != ? AND (`+strings.Join(conds, " OR ")+`) ORDER BY created_at ASC, local_id ASC`, args...)
}

// List is the cache-first read: local rows, refreshed from the remote when
// the cache policy says so.
func (s *Store[T, P]) List(ctx context.Context) ([]P, error) {
	if s.opts.Fetcher == nil {
		return s.GetAll(ctx)
	}
	return cache.Load(ctx, s.opts.Cache, s.schema.kind, s.GetAll, func(ctx context.Context) error {
		_, err := s.Pull(ctx)
		return err
	})
}
