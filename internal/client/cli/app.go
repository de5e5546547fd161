package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/auth"
	"github.com/dmitrijs2005/ordersync/internal/client/api"
	"github.com/dmitrijs2005/ordersync/internal/client/archive"
	"github.com/dmitrijs2005/ordersync/internal/client/cache"
	"github.com/dmitrijs2005/ordersync/internal/client/config"
	"github.com/dmitrijs2005/ordersync/internal/client/engine"
	"github.com/dmitrijs2005/ordersync/internal/client/netstate"
	"github.com/dmitrijs2005/ordersync/internal/client/repositories/entities"
	"github.com/dmitrijs2005/ordersync/internal/client/store"
	"github.com/dmitrijs2005/ordersync/internal/logging"
)

const probeTimeout = 3 * time.Second

// remote is everything the app needs from the REST backend.
type remote interface {
	engine.Remote
	entities.Fetcher
}

type App struct {
	config  *config.Config
	db      *sql.DB
	repos   *entities.Set
	engine  *engine.Engine
	monitor *netstate.Monitor
	prober  netstate.Prober
	session *auth.Session
	cache   *cache.Refresher
	logger  logging.Logger
	now     func() time.Time

	reader *bufio.Reader
	out    io.Writer

	closers   []io.Closer
	closeOnce sync.Once
}

// deps are the collaborators NewApp builds from the configuration.
type deps struct {
	remote   remote
	prober   netstate.Prober
	archiver archive.Archiver
	logger   logging.Logger
	session  *auth.Session
	now      func() time.Time
	reader   *bufio.Reader
	out      io.Writer
}

// NewApp opens the local database and wires the REST client, connectivity
// monitor, cache policy and sync engine described by c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, logCloser := logging.New(logging.FileOptions{
		Path:       c.LogFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}, slog.LevelInfo)

	db, err := store.Open(ctx, c.DBPath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "path", c.DBPath, "error", err)
		_ = logCloser.Close()
		return nil, err
	}

	session := auth.NewSession()
	if c.APIToken != "" {
		if err := session.SetToken(c.APIToken); err != nil {
			logger.Warn(ctx, "ignoring configured API token", "error", err)
		}
	}

	client := api.New(c.ServerBaseURL, api.WithToken(session.Token))
	prober, err := netstate.NewHTTPProber(c.ServerBaseURL, client, probeTimeout)
	if err != nil {
		_ = db.Close()
		_ = logCloser.Close()
		return nil, err
	}

	// A nil *S3Archiver must not end up inside the interface.
	var archiver archive.Archiver
	if c.ArchiveEnabled() {
		s3a, err := archive.NewS3Archiver(ctx, archive.Config{
			Bucket:    c.ArchiveBucket,
			Region:    c.ArchiveRegion,
			Endpoint:  c.ArchiveEndpoint,
			AccessKey: c.ArchiveAccessKey,
			SecretKey: c.ArchiveSecretKey,
		})
		if err != nil {
			_ = db.Close()
			_ = logCloser.Close()
			return nil, fmt.Errorf("audit archive: %w", err)
		}
		archiver = s3a
	}

	a := newApp(c, db, deps{
		remote:   client,
		prober:   prober,
		archiver: archiver,
		logger:   logger,
		session:  session,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	})
	a.closers = append(a.closers, logCloser)
	return a, nil
}

func newApp(c *config.Config, db *sql.DB, d deps) *App {
	if d.logger == nil {
		d.logger = logging.Nop()
	}
	if d.session == nil {
		d.session = auth.NewSession()
	}
	if d.now == nil {
		d.now = time.Now
	}

	monitor := netstate.NewMonitor(netstate.State{}, d.logger)
	refresher := cache.NewRefresher(monitor.Online, c.RefreshCooldown, d.logger)
	repos := entities.NewSet(db, entities.Options{
		Now:     d.now,
		UserID:  d.session.UserID,
		Cache:   refresher,
		Fetcher: d.remote,
	})
	eng := engine.New(db, repos, d.remote, engine.Options{
		InitialRetryDelay: c.InitialRetryDelay,
		SyncInterval:      c.SyncInterval,
		CleanupInterval:   c.CleanupInterval,
		QueueRetention:    c.QueueRetention,
		AuditRetention:    c.AuditRetention,
		Monitor:           monitor,
		Archiver:          d.archiver,
		Now:               d.now,
		UserID:            d.session.UserID,
		Logger:            d.logger,
	})

	return &App{
		config:  c,
		db:      db,
		repos:   repos,
		engine:  eng,
		monitor: monitor,
		prober:  d.prober,
		session: d.session,
		cache:   refresher,
		logger:  d.logger,
		now:     d.now,
		reader:  d.reader,
		out:     d.out,
	}
}

// Run starts connectivity probing and the sync engine, then serves the
// console until the user leaves. Resources are released on return.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.prober != nil {
		go a.monitor.Run(ctx, a.config.OnlineCheckInterval, a.prober)
	}
	if err := a.engine.Initialize(ctx); err != nil {
		return err
	}

	printlnFn("ordersync console. Type 'help' for the list of commands.")
	runREPL(ctx, a, a.statusLine, a.reader)
	return nil
}

// RunCommand runs a single console command without the REPL. Connectivity
// is probed once and the pass that going online triggers is drained first.
func (a *App) RunCommand(ctx context.Context, name string) error {
	fn, ok := commandTable(a)[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	if a.prober != nil {
		st := a.prober.Probe(ctx)
		a.monitor.Set(st)
		a.engine.SetConnectivity(st)
		a.engine.Wait()
	}
	return fn(ctx)
}

// Close stops the engine, waits for background refreshes and closes the
// database and the log file. It is safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.engine.Destroy()
		a.cache.Wait()
		if err := a.db.Close(); err != nil {
			a.logger.Warn(context.Background(), "closing database", "error", err)
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			_ = a.closers[i].Close()
		}
	})
}

func (a *App) hasSession() bool {
	return a.session.Token() != ""
}

// statusLine is the prompt decoration: connectivity plus queue backlog.
func (a *App) statusLine() string {
	st, err := a.engine.Status(context.Background())
	if err != nil {
		return "(status unavailable)"
	}
	mode := "offline"
	if st.IsOnline {
		mode = "online"
	}
	switch {
	case st.IsSyncing:
		mode += ", syncing"
	case st.ErrorCount > 0:
		mode += fmt.Sprintf(", %d pending, %d failed", st.PendingCount, st.ErrorCount)
	case st.PendingCount > 0:
		mode += fmt.Sprintf(", %d pending", st.PendingCount)
	}
	return "(" + mode + ")"
}
