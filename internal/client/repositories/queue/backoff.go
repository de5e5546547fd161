package queue

import (
	"time"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
)

// MaxBackoff caps the delay between two attempts.
const MaxBackoff = time.Hour

// Delay is the wait required after the given number of failed attempts:
// initial × 2^(attempts−1), capped at MaxBackoff. Zero attempts wait nothing.
func Delay(attempts int, initial time.Duration) time.Duration {
	if attempts <= 0 || initial <= 0 {
		return 0
	}
	d := initial
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= MaxBackoff {
			return MaxBackoff
		}
	}
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

// IsReady reports whether an entry may be attempted at now.
func IsReady(attempts int, lastAttempt *time.Time, now time.Time, initial time.Duration) bool {
	if attempts == 0 || lastAttempt == nil {
		return true
	}
	return !now.Before(lastAttempt.Add(Delay(attempts, initial)))
}

// Ready filters entries down to those whose backoff window elapsed,
// preserving order.
func Ready(entries []models.QueueEntry, now time.Time, initial time.Duration) []models.QueueEntry {
	ready := make([]models.QueueEntry, 0, len(entries))
	for _, e := range entries {
		if IsReady(e.Attempts, e.LastAttempt, now, initial) {
			ready = append(ready, e)
		}
	}
	return ready
}
