package entities

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/audit"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/queue"
	"github.com/dmitrijs2005/ordersync/internal/client/store"
)

type env struct {
	db    *sql.DB
	set   *Set
	queue *queue.SQLiteRepository
	audit *audit.SQLiteRepository
	now   time.Time
	ids   int
}

func newEnv(t *testing.T, fetcher Fetcher) *env {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &env{db: db, now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	e.set = NewSet(db, Options{
		Now:     func() time.Time { return e.now },
		NewID:   func() string { e.ids++; return fmt.Sprintf("id-%d", e.ids) },
		UserID:  func() string { return "7" },
		Fetcher: fetcher,
	})
	e.queue = queue.NewSQLiteRepository(db)
	e.audit = audit.NewSQLiteRepository(db)
	return e
}

func (e *env) entry(t *testing.T, kind models.EntityType, localID string) *models.QueueEntry {
	t.Helper()
	entry, err := e.queue.GetByEntity(context.Background(), kind, localID)
	require.NoError(t, err)
	return entry
}

func (e *env) trail(t *testing.T, kind models.EntityType, localID string) []models.AuditEntry {
	t.Helper()
	entries, err := e.audit.ListByEntity(context.Background(), kind, localID)
	require.NoError(t, err)
	return entries
}

func (e *env) syncedClient(t *testing.T, name string, serverID int64) *models.Client {
	t.Helper()
	ctx := context.Background()
	c, err := e.set.Clients.Create(ctx, models.Client{Name: name})
	require.NoError(t, err)
	require.NoError(t, e.set.Clients.MarkAsSynced(ctx, c.LocalID, serverID))
	c, err = e.set.Clients.GetByID(ctx, c.LocalID)
	require.NoError(t, err)
	return c
}

func ptr[T any](v T) *T { return &v }

type fakeFetcher struct {
	collections map[string][]any
	err         error
	lists       int
}

func (f *fakeFetcher) List(_ context.Context, resource string) ([]json.RawMessage, error) {
	f.lists++
	if f.err != nil {
		return nil, f.err
	}
	var out []json.RawMessage
	for _, item := range f.collections[resource] {
		b, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
