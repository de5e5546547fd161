package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
)

func TestDelay(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{40, MaxBackoff},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Delay(tt.attempts, time.Second), "attempts=%d", tt.attempts)
	}
	assert.Equal(t, time.Duration(0), Delay(3, 0))
}

func TestIsReady(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(ago time.Duration) *time.Time {
		v := now.Add(-ago)
		return &v
	}

	assert.True(t, IsReady(0, nil, now, time.Second), "fresh entry")
	assert.True(t, IsReady(0, at(0), now, time.Second), "zero attempts ignore last attempt")
	assert.True(t, IsReady(2, nil, now, time.Second), "no timestamp")

	assert.False(t, IsReady(2, at(time.Second), now, time.Second), "needs 2s, 1s elapsed")
	assert.True(t, IsReady(2, at(2*time.Second), now, time.Second), "exactly at the boundary")
	assert.False(t, IsReady(3, at(3*time.Second), now, time.Second), "needs 4s")
	assert.True(t, IsReady(3, at(5*time.Second), now, time.Second))
}

// Readiness is monotonic in elapsed time: once ready, an entry stays ready.
func TestIsReady_Monotonic(t *testing.T) {
	last := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for attempts := 1; attempts <= 6; attempts++ {
		wasReady := false
		for step := 0; step <= 80; step++ {
			now := last.Add(time.Duration(step) * 500 * time.Millisecond)
			ready := IsReady(attempts, &last, now, time.Second)
			if wasReady {
				assert.True(t, ready, "attempts=%d step=%d", attempts, step)
			}
			wasReady = wasReady || ready
		}
	}
}

func TestReady_FiltersInOrder(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Second)
	entries := []models.QueueEntry{
		{ID: 1},
		{ID: 2, Attempts: 3, LastAttempt: &recent},
		{ID: 3, Attempts: 1, LastAttempt: &recent},
	}

	got := Ready(entries, now, time.Second)
	assert.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)
}
