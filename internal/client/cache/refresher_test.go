package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/logging"
)

type fakeSource struct {
	rows    []string
	pulls   atomic.Int32
	pullErr error
	remote  []string
}

func (f *fakeSource) read(context.Context) ([]string, error) {
	return append([]string(nil), f.rows...), nil
}

func (f *fakeSource) pull(context.Context) error {
	f.pulls.Add(1)
	if f.pullErr != nil {
		return f.pullErr
	}
	f.rows = append([]string(nil), f.remote...)
	return nil
}

func newRefresher(online bool) (*Refresher, *time.Time) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRefresher(func() bool { return online }, time.Minute, logging.Nop())
	r.now = func() time.Time { return now }
	return r, &now
}

func TestLoad_EmptyAndOnlinePullsSynchronously(t *testing.T) {
	r, _ := newRefresher(true)
	src := &fakeSource{remote: []string{"a", "b"}}

	rows, err := Load(context.Background(), r, models.EntityClient, src.read, src.pull)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rows)
	assert.Equal(t, int32(1), src.pulls.Load())
}

func TestLoad_EmptyAndOfflineServesNothing(t *testing.T) {
	r, _ := newRefresher(false)
	src := &fakeSource{remote: []string{"a"}}

	rows, err := Load(context.Background(), r, models.EntityClient, src.read, src.pull)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, int32(0), src.pulls.Load())
}

func TestLoad_BackgroundRefreshHonorsCooldown(t *testing.T) {
	r, now := newRefresher(true)
	src := &fakeSource{rows: []string{"local"}, remote: []string{"local", "remote"}}
	ctx := context.Background()

	rows, err := Load(ctx, r, models.EntityClient, src.read, src.pull)
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, rows, "served from the store before the refresh lands")
	r.Wait()
	assert.Equal(t, int32(1), src.pulls.Load())

	_, err = Load(ctx, r, models.EntityClient, src.read, src.pull)
	require.NoError(t, err)
	r.Wait()
	assert.Equal(t, int32(1), src.pulls.Load(), "within cooldown")

	*now = now.Add(2 * time.Minute)
	_, err = Load(ctx, r, models.EntityClient, src.read, src.pull)
	require.NoError(t, err)
	r.Wait()
	assert.Equal(t, int32(2), src.pulls.Load())
}

func TestLoad_CooldownIsPerKind(t *testing.T) {
	r, _ := newRefresher(true)
	src := &fakeSource{rows: []string{"x"}}
	ctx := context.Background()

	_, err := Load(ctx, r, models.EntityClient, src.read, src.pull)
	require.NoError(t, err)
	_, err = Load(ctx, r, models.EntityExpense, src.read, src.pull)
	require.NoError(t, err)
	r.Wait()
	assert.Equal(t, int32(2), src.pulls.Load())
}

func TestLoad_FailedRefreshResetsCooldown(t *testing.T) {
	r, _ := newRefresher(true)
	src := &fakeSource{rows: []string{"x"}, pullErr: errors.New("offline")}
	ctx := context.Background()

	_, err := Load(ctx, r, models.EntityClient, src.read, src.pull)
	require.NoError(t, err)
	r.Wait()

	_, err = Load(ctx, r, models.EntityClient, src.read, src.pull)
	require.NoError(t, err)
	r.Wait()
	assert.Equal(t, int32(2), src.pulls.Load())
}

func TestLoad_FailedInitialFetchReturnsLocalRows(t *testing.T) {
	r, _ := newRefresher(true)
	src := &fakeSource{pullErr: errors.New("boom")}

	rows, err := Load(context.Background(), r, models.EntityClient, src.read, src.pull)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLoad_NilRefresherOnlyReads(t *testing.T) {
	src := &fakeSource{rows: []string{"x"}}

	rows, err := Load(context.Background(), nil, models.EntityClient, src.read, src.pull)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, rows)
	assert.Equal(t, int32(0), src.pulls.Load())
}
