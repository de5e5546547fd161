// Package cache implements the cache-first read path shared by all entity
// repositories: local rows are always served first, an empty table is
// populated synchronously when online, and otherwise the remote is polled in
// the background no more than once per cooldown window.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
	"github.com/dmitrijs2005/ordersync/internal/logging"
)

// DefaultCooldown is the minimum spacing of background refreshes per kind.
const DefaultCooldown = 60 * time.Second

type Refresher struct {
	online   func() bool
	cooldown time.Duration
	logger   logging.Logger
	now      func() time.Time

	mu   sync.Mutex
	last map[models.EntityType]time.Time
	wg   sync.WaitGroup
}

func NewRefresher(online func() bool, cooldown time.Duration, logger logging.Logger) *Refresher {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Refresher{
		online:   online,
		cooldown: cooldown,
		logger:   logger,
		now:      time.Now,
		last:     make(map[models.EntityType]time.Time),
	}
}

// Load reads rows through read and, depending on connectivity and the
// cooldown, refreshes them through pull. A nil Refresher only reads.
//
// Pull failures never fail Load: the local rows are what the caller gets.
func Load[T any](ctx context.Context, r *Refresher, kind models.EntityType,
	read func(context.Context) ([]T, error), pull func(context.Context) error) ([]T, error) {

	rows, err := read(ctx)
	if err != nil || r == nil || !r.online() {
		return rows, err
	}

	if len(rows) == 0 {
		r.touch(kind)
		if err := pull(ctx); err != nil {
			r.reset(kind)
			r.logger.Warn(ctx, "initial fetch failed", "kind", kind, "error", err)
			return rows, nil
		}
		return read(ctx)
	}

	if r.claim(kind) {
		bg := context.WithoutCancel(ctx)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := pull(bg); err != nil {
				r.reset(kind)
				r.logger.Warn(bg, "background refresh failed", "kind", kind, "error", err)
			}
		}()
	}
	return rows, nil
}

// claim reserves a background refresh slot for kind if the cooldown elapsed.
func (r *Refresher) claim(kind models.EntityType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if last, ok := r.last[kind]; ok && now.Sub(last) < r.cooldown {
		return false
	}
	r.last[kind] = now
	return true
}

func (r *Refresher) touch(kind models.EntityType) {
	r.mu.Lock()
	r.last[kind] = r.now()
	r.mu.Unlock()
}

func (r *Refresher) reset(kind models.EntityType) {
	r.mu.Lock()
	delete(r.last, kind)
	r.mu.Unlock()
}

// Wait blocks until in-flight background refreshes finish.
func (r *Refresher) Wait() {
	r.wg.Wait()
}
