package entities

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ordersync/internal/client/cache"
	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/common"
	"github.com/dmitrijs2005/ordersync/internal/logging"
)

func TestUpsertFromServer_InsertsNewRow(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	c, err := e.set.Clients.UpsertFromServer(ctx, models.RemoteClient{ID: 11, Name: "Remote"}.ToLocal())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, c.SyncStatus)
	require.NotNil(t, c.ServerID)
	assert.Equal(t, int64(11), *c.ServerID)
	assert.NotEmpty(t, c.LocalID)

	assert.Nil(t, e.entry(t, models.EntityClient, c.LocalID), "remote rows are never queued")
	trail := e.trail(t, models.EntityClient, c.LocalID)
	require.Len(t, trail, 1)
	assert.Equal(t, models.AuditUpsert, trail[0].Operation)
}

func TestUpsertFromServer_RequiresServerID(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.set.Clients.UpsertFromServer(context.Background(), &models.Client{Name: "x"})
	require.ErrorIs(t, err, common.ErrMissingServerID)
}

func TestUpsertFromServer_OverwritesSyncedRow(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	c := e.syncedClient(t, "Ana", 500)
	c2, err := e.set.Clients.UpsertFromServer(ctx, models.RemoteClient{ID: 500, Name: "Ana (server)"}.ToLocal())
	require.NoError(t, err)
	assert.Equal(t, c.LocalID, c2.LocalID)
	assert.Equal(t, "Ana (server)", c2.Name)
	assert.Equal(t, models.StatusSynced, c2.SyncStatus)

	row, err := e.set.Clients.GetByID(ctx, c.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "Ana (server)", row.Name)

	trail := e.trail(t, models.EntityClient, c.LocalID)
	last := trail[len(trail)-1]
	assert.Equal(t, models.AuditUpsert, last.Operation)
	assert.False(t, last.ConflictDetected)

	// the same snapshot again is not a change
	_, err = e.set.Clients.UpsertFromServer(ctx, models.RemoteClient{ID: 500, Name: "Ana (server)"}.ToLocal())
	require.NoError(t, err)
	assert.Len(t, e.trail(t, models.EntityClient, c.LocalID), len(trail))
}

func TestUpsertFromServer_KeepsPendingLocalEdit(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	c := e.syncedClient(t, "Ana", 500)
	_, err := e.set.Clients.Update(ctx, c.LocalID, models.ClientPatch{Name: ptr("Ana (local)")})
	require.NoError(t, err)

	got, err := e.set.Clients.UpsertFromServer(ctx, models.RemoteClient{ID: 500, Name: "Ana (server)"}.ToLocal())
	require.NoError(t, err)
	assert.Equal(t, "Ana (local)", got.Name)

	row, err := e.set.Clients.GetByID(ctx, c.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "Ana (local)", row.Name)
	assert.Equal(t, models.StatusPendingUpdate, row.SyncStatus)

	conflicts, err := e.audit.ListConflicts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ResolutionLocalPendingKept, conflicts[0].ConflictResolution)
	assert.Equal(t, c.LocalID, conflicts[0].EntityID)
}

func TestUpsertFromServer_RepeatedSnapshotAuditsOneConflict(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	c := e.syncedClient(t, "Ana", 500)
	_, err := e.set.Clients.Update(ctx, c.LocalID, models.ClientPatch{Name: ptr("Ana (local)")})
	require.NoError(t, err)

	for range 3 {
		_, err := e.set.Clients.UpsertFromServer(ctx, models.RemoteClient{ID: 500, Name: "Ana (server)"}.ToLocal())
		require.NoError(t, err)
	}
	conflicts, err := e.audit.ListConflicts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, conflicts, 1, "an unchanged remote snapshot is audited once")

	_, err = e.set.Clients.UpsertFromServer(ctx, models.RemoteClient{ID: 500, Name: "Ana (server v2)"}.ToLocal())
	require.NoError(t, err)
	conflicts, err = e.audit.ListConflicts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	assert.Contains(t, string(conflicts[0].NewData), "Ana (server v2)")
}

func TestUpsertFromServer_AdoptsOwnUnacknowledgedCreate(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	c, err := e.set.Clients.Create(ctx, models.Client{Name: "Ana"})
	require.NoError(t, err)

	// the create reached the server but the response was lost
	got, err := e.set.Clients.UpsertFromServer(ctx, models.RemoteClient{ID: 77, LocalID: c.LocalID, Name: "Ana"}.ToLocal())
	require.NoError(t, err)
	assert.Equal(t, c.LocalID, got.LocalID)
	require.NotNil(t, got.ServerID)
	assert.Equal(t, int64(77), *got.ServerID)
	assert.Equal(t, models.StatusPendingUpdate, got.SyncStatus)

	entry := e.entry(t, models.EntityClient, c.LocalID)
	require.NotNil(t, entry)
	assert.Equal(t, models.OpUpdate, entry.Operation)

	all, err := e.set.Clients.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "no duplicate row")
}

func TestUpsertFromServer_ResolvesParentLocalIDs(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	c := e.syncedClient(t, "Ana", 500)
	opened := time.Date(2024, 4, 30, 9, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	o, err := e.set.Orders.UpsertFromServer(ctx, models.RemoteServiceOrder{
		ID: 900, ClientID: 500, Number: "OS-7", Status: models.OrderInProgress, OpenedAt: opened,
	}.ToLocal())
	require.NoError(t, err)
	assert.Equal(t, c.LocalID, o.ClientLocalID)
	assert.True(t, opened.Equal(o.OpenedAt))

	// the same snapshot from another timezone rendering is still unchanged
	before := len(e.trail(t, models.EntityServiceOrder, o.LocalID))
	_, err = e.set.Orders.UpsertFromServer(ctx, models.RemoteServiceOrder{
		ID: 900, ClientID: 500, Number: "OS-7", Status: models.OrderInProgress, OpenedAt: opened.UTC(),
	}.ToLocal())
	require.NoError(t, err)
	assert.Len(t, e.trail(t, models.EntityServiceOrder, o.LocalID), before)
}

func TestPull_UpsertsRemoteCollection(t *testing.T) {
	f := &fakeFetcher{collections: map[string][]any{
		"clientes": {
			models.RemoteClient{ID: 1, Name: "A"},
			models.RemoteClient{ID: 2, Name: "B"},
		},
	}}
	e := newEnv(t, f)
	ctx := context.Background()

	n, err := e.set.Clients.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := e.set.Clients.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPull_FetchErrorIsWrapped(t *testing.T) {
	f := &fakeFetcher{err: common.ErrTransientNetwork}
	e := newEnv(t, f)

	_, err := e.set.Clients.Pull(context.Background())
	require.ErrorIs(t, err, common.ErrTransientNetwork)
}

func TestList_CacheFirst(t *testing.T) {
	f := &fakeFetcher{collections: map[string][]any{
		"despesas": {models.RemoteExpense{ID: 3, Description: "Rent", Amount: 1000, SpentAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}},
	}}
	e := newEnv(t, f)
	online := true
	refresher := cache.NewRefresher(func() bool { return online }, time.Minute, logging.Nop())
	e.set = NewSet(e.db, Options{Fetcher: f, Cache: refresher})
	ctx := context.Background()

	rows, err := e.set.Expenses.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1, "empty table is populated synchronously")
	assert.Equal(t, "Rent", rows[0].Description)
	assert.Equal(t, 1, f.lists)

	rows, err = e.set.Expenses.List(ctx)
	require.NoError(t, err)
	refresher.Wait()
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, f.lists, "second read is inside the cooldown")

	online = false
	e.set = NewSet(e.db, Options{Fetcher: f, Cache: cache.NewRefresher(func() bool { return online }, time.Minute, logging.Nop())})
	_, err = e.set.Expenses.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.lists, "offline reads never touch the remote")
}

func TestList_OfflineFailureStillServesLocal(t *testing.T) {
	f := &fakeFetcher{err: errors.New("no route to host")}
	e := newEnv(t, f)
	refresher := cache.NewRefresher(func() bool { return true }, time.Minute, logging.Nop())
	e.set = NewSet(e.db, Options{Fetcher: f, Cache: refresher})

	rows, err := e.set.Clients.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}
