package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/finsync-io/finsync/internal/api"
	"github.com/finsync-io/finsync/internal/app/reconcile"
	"github.com/finsync-io/finsync/internal/app/syncmon"
	"github.com/finsync-io/finsync/internal/app/syncsched"
	"github.com/finsync-io/finsync/internal/infra/bankfeed"
	"github.com/finsync-io/finsync/internal/infra/observability"
	"github.com/finsync-io/finsync/internal/infra/sqlite"
)

// Daemon wires storage, services, the sync scheduler and the HTTP API into
// one long-running process.
type Daemon struct {
	cfg       Config
	db        *sqlite.DB
	scheduler *syncsched.Scheduler
	server    *api.Server
}

// New builds a daemon from the configuration. The database is opened and
// migrated here; Run starts the network-facing parts.
func New(cfg Config) (*Daemon, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tracer := observability.NewTracer(1000, true)
	provider := bankfeed.NewClient(cfg.Provider.BaseURL,
		bankfeed.WithTimeout(cfg.Provider.TimeoutDuration()))

	engine := reconcile.NewEngine(db, db,
		reconcile.WithTolerance(cfg.Reconciliation.ToleranceMinor),
		reconcile.WithTracer(tracer))
	writer := reconcile.NewWriter(db, db)
	monitor := syncmon.NewMonitor(db)
	scheduler := syncsched.New(db, db, provider, syncsched.Config{
		SweepInterval:  cfg.Sync.SweepIntervalDuration(),
		MaxConcurrent:  cfg.Sync.MaxConcurrent,
		ImportLookback: cfg.Sync.ImportLookback(),
	}, syncsched.WithTracer(tracer))

	server := api.NewServer(db, db, engine, writer, monitor, scheduler)
	if cfg.Metrics.Enabled {
		server.EnableMetrics()
	}

	return &Daemon{
		cfg:       cfg,
		db:        db,
		scheduler: scheduler,
		server:    server,
	}, nil
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	d.server.SetBaseContext(ctx)
	if d.cfg.Sync.AutoStart {
		d.scheduler.Start(ctx)
	}

	httpServer := &http.Server{
		Addr:    d.cfg.API.Addr(),
		Handler: d.server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		d.scheduler.Stop()
		d.db.Close()
		return err
	case <-ctx.Done():
	}

	log.Printf("[daemon] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[daemon] http shutdown: %v", err)
	}
	d.scheduler.Stop()
	return d.db.Close()
}
