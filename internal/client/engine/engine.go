// Package engine drains the sync queue against the remote.
//
// An Engine is an explicit object with an Initialize/Destroy lifecycle.
// Several engines over separate databases can run side by side. A pass
// (SyncAll) takes the ready queue entries in priority order and pushes each
// one through the repository of its entity type. It never runs twice at
// once and never starts while offline.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/client/archive"
	"github.com/dmitrijs2005/ordersync/internal/client/netstate"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/audit"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/entities"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/queue"
	"github.com/dmitrijs2005/ordersync/internal/logging"
)

// Remote is the write half of the REST collaborator.
type Remote interface {
	Create(ctx context.Context, resource, localID string, body any) (int64, error)
	Update(ctx context.Context, resource string, serverID int64, body any) error
	Delete(ctx context.Context, resource string, serverID int64) error
}

type Options struct {
	// InitialRetryDelay is the backoff base. Defaults to one second.
	InitialRetryDelay time.Duration
	// SyncInterval runs a pass periodically while online; 0 disables it.
	SyncInterval time.Duration

	CleanupInterval time.Duration
	QueueRetention  time.Duration
	AuditRetention  time.Duration

	// Monitor, when set, drives SetConnectivity after Initialize.
	Monitor *netstate.Monitor
	// Archiver receives audit entries before retention deletes them.
	Archiver archive.Archiver

	Now    func() time.Time
	UserID func() string
	Logger logging.Logger
}

func (o Options) withDefaults() Options {
	if o.InitialRetryDelay <= 0 {
		o.InitialRetryDelay = time.Second
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = 24 * time.Hour
	}
	if o.QueueRetention <= 0 {
		o.QueueRetention = 30 * 24 * time.Hour
	}
	if o.AuditRetention <= 0 {
		o.AuditRetention = 90 * 24 * time.Hour
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.UserID == nil {
		o.UserID = func() string { return "" }
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	return o
}

// Status is what subscribers see.
type Status struct {
	IsOnline     bool
	IsSyncing    bool
	PendingCount int
	ErrorCount   int
	LastSyncTime *time.Time
}

type Engine struct {
	db     *sql.DB
	repos  *entities.Set
	remote Remote
	opts   Options
	logger logging.Logger

	queue *queue.SQLiteRepository
	audit *audit.SQLiteRepository
	meta  *metadata.SQLiteRepository

	online  atomic.Bool
	syncing atomic.Bool

	mu        sync.Mutex
	listeners map[int]func(Status)
	nextID    int
	started   bool
	ctx       context.Context
	cancel    context.CancelFunc
	unwatch   func()

	// wg tracks the periodic loop, passes the triggered background passes.
	wg     sync.WaitGroup
	passes sync.WaitGroup
}

func New(db *sql.DB, repos *entities.Set, remote Remote, opts Options) *Engine {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		db:        db,
		repos:     repos,
		remote:    remote,
		opts:      opts,
		logger:    opts.Logger.With("component", "sync"),
		queue:     queue.NewSQLiteRepository(db).WithClock(opts.Now),
		audit:     audit.NewSQLiteRepository(db).WithClock(opts.Now),
		meta:      metadata.NewSQLiteRepository(db),
		listeners: make(map[int]func(Status)),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Initialize starts watching connectivity and, when configured, the
// periodic pass. If the engine starts online a pass is triggered.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.mu.Unlock()

	for _, repo := range e.repos.All() {
		n, err := repo.ReleaseStale(ctx)
		if err != nil {
			return fmt.Errorf("failed to release %s rows: %w", repo.Kind(), err)
		}
		if n > 0 {
			e.logger.Warn(ctx, "released rows left syncing", "entity", repo.Kind(), "count", n)
		}
	}

	if m := e.opts.Monitor; m != nil {
		e.online.Store(m.Online())
		unwatch := m.Subscribe(e.SetConnectivity)
		e.mu.Lock()
		e.unwatch = unwatch
		e.mu.Unlock()
	}

	if e.opts.SyncInterval > 0 {
		e.wg.Add(1)
		go e.periodic(e.opts.SyncInterval)
	}

	e.logger.Info(ctx, "sync engine started", "online", e.online.Load(), "interval", e.opts.SyncInterval)
	if e.online.Load() {
		e.trigger()
	}
	return nil
}

// Destroy stops background work, waits for a running pass to finish and
// drops all subscribers. The engine cannot be restarted.
func (e *Engine) Destroy() {
	e.mu.Lock()
	unwatch := e.unwatch
	e.unwatch = nil
	e.cancel()
	e.mu.Unlock()
	if unwatch != nil {
		unwatch()
	}

	e.wg.Wait()
	e.passes.Wait()

	e.mu.Lock()
	e.listeners = make(map[int]func(Status))
	e.mu.Unlock()
	e.logger.Info(context.Background(), "sync engine stopped")
}

func (e *Engine) periodic(interval time.Duration) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if !e.online.Load() {
				continue
			}
			e.runLogged(e.ctx, "periodic")
		}
	}
}

// trigger starts a pass in the background.
func (e *Engine) trigger() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx.Err() != nil {
		return
	}
	e.passes.Add(1)
	go func() {
		defer e.passes.Done()
		e.runLogged(e.ctx, "background")
	}()
}

func (e *Engine) runLogged(ctx context.Context, origin string) {
	res, err := e.SyncAll(ctx)
	if err != nil {
		e.logger.Error(ctx, "sync pass failed", "origin", origin, "error", err)
		return
	}
	if res.Skipped {
		e.logger.Debug(ctx, "sync pass skipped", "origin", origin, "reason", res.Reason)
	}
}

// Wait blocks until the background passes triggered so far have returned.
func (e *Engine) Wait() {
	e.passes.Wait()
}

// IsOnline reports the last connectivity state.
func (e *Engine) IsOnline() bool {
	return e.online.Load()
}

// SetConnectivity records a connectivity observation. Going from offline to
// online triggers a background pass.
func (e *Engine) SetConnectivity(s netstate.State) {
	online := s.Online()
	was := e.online.Swap(online)
	if was == online {
		return
	}
	e.logger.Info(context.Background(), "connectivity changed", "online", online)
	e.notify(context.Background())
	if online {
		e.trigger()
	}
}

// Status reads the current snapshot.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	counts, err := e.queue.GetCounts(ctx)
	if err != nil {
		return Status{}, err
	}
	last, err := e.meta.GetTime(ctx, metadata.KeyLastSync)
	if err != nil {
		return Status{}, err
	}
	return Status{
		IsOnline:     e.online.Load(),
		IsSyncing:    e.syncing.Load(),
		PendingCount: counts.Pending,
		ErrorCount:   counts.Errors,
		LastSyncTime: last,
	}, nil
}

// Subscribe registers fn for status changes and immediately delivers the
// current status. The returned func unsubscribes.
func (e *Engine) Subscribe(fn func(Status)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()

	if st, err := e.Status(context.Background()); err == nil {
		fn(st)
	}

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

func (e *Engine) notify(ctx context.Context) {
	e.mu.Lock()
	fns := make([]func(Status), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	if len(fns) == 0 {
		return
	}

	st, err := e.Status(context.WithoutCancel(ctx))
	if err != nil {
		e.logger.Warn(ctx, "failed to read sync status", "error", err)
		return
	}
	for _, fn := range fns {
		fn(st)
	}
}
