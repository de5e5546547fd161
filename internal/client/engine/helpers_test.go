package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/audit"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/entities"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/queue"
	"github.com/dmitrijs2005/ordersync/internal/client/store"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type call struct {
	method   string
	resource string
	localID  string
	serverID int64
	body     any
}

// fakeRemote hands out server ids from 500 upwards. hook, when set, runs
// before each call and may fail it.
type fakeRemote struct {
	mu     sync.Mutex
	calls  []call
	nextID int64
	hook   func(c call) error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{nextID: 500}
}

func (f *fakeRemote) record(c call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		return hook(c)
	}
	return nil
}

func (f *fakeRemote) Create(_ context.Context, resource, localID string, body any) (int64, error) {
	if err := f.record(call{method: "POST", resource: resource, localID: localID, body: body}); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	return id, nil
}

func (f *fakeRemote) Update(_ context.Context, resource string, serverID int64, body any) error {
	return f.record(call{method: "PUT", resource: resource, serverID: serverID, body: body})
}

func (f *fakeRemote) Delete(_ context.Context, resource string, serverID int64) error {
	return f.record(call{method: "DELETE", resource: resource, serverID: serverID})
}

func (f *fakeRemote) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeRemote) SetHook(h func(c call) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = h
}

type env struct {
	set    *entities.Set
	eng    *Engine
	remote *fakeRemote
	clock  *clock
	queue  *queue.SQLiteRepository
	audit  *audit.SQLiteRepository
}

func newEnv(t *testing.T, tweak ...func(*Options)) *env {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &env{
		remote: newFakeRemote(),
		clock:  &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	var mu sync.Mutex
	ids := 0
	e.set = entities.NewSet(db, entities.Options{
		Now: e.clock.Now,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
		UserID: func() string { return "7" },
	})

	opts := Options{
		InitialRetryDelay: time.Second,
		Now:               e.clock.Now,
		UserID:            func() string { return "7" },
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	e.eng = New(db, e.set, e.remote, opts)
	t.Cleanup(e.eng.Destroy)

	e.queue = queue.NewSQLiteRepository(db)
	e.audit = audit.NewSQLiteRepository(db)
	return e
}

// goOnline flips the engine online without triggering a background pass.
func (e *env) goOnline() {
	e.eng.online.Store(true)
}

func (e *env) sync(t *testing.T) SyncResult {
	t.Helper()
	res, err := e.eng.SyncAll(context.Background())
	require.NoError(t, err)
	return res
}

func (e *env) entry(t *testing.T, kind models.EntityType, localID string) *models.QueueEntry {
	t.Helper()
	entry, err := e.queue.GetByEntity(context.Background(), kind, localID)
	require.NoError(t, err)
	return entry
}

func (e *env) client(t *testing.T, localID string) *models.Client {
	t.Helper()
	c, err := e.set.Clients.GetByID(context.Background(), localID)
	require.NoError(t, err)
	return c
}

func (e *env) order(t *testing.T, localID string) *models.ServiceOrder {
	t.Helper()
	o, err := e.set.Orders.GetByID(context.Background(), localID)
	require.NoError(t, err)
	return o
}

func (e *env) newClient(t *testing.T, name string) *models.Client {
	t.Helper()
	c, err := e.set.Clients.Create(context.Background(), models.Client{Name: name})
	require.NoError(t, err)
	return c
}

func (e *env) trail(t *testing.T, kind models.EntityType, localID string) []models.AuditEntry {
	t.Helper()
	entries, err := e.audit.ListByEntity(context.Background(), kind, localID)
	require.NoError(t, err)
	return entries
}

func auditOps(entries []models.AuditEntry) []models.AuditOperation {
	ops := make([]models.AuditOperation, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, e.Operation)
	}
	return ops
}

func ptr[T any](v T) *T { return &v }
