package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"inboxq/internal/config"
	"inboxq/internal/ingest"
	"inboxq/internal/logging"
	"inboxq/internal/queue"
	"inboxq/internal/workflow"
)

const flushTimeout = 30 * time.Second

// Daemon owns the lock and the lifecycle of the writer and workflow manager.
// A stopped daemon cannot be started again because its BatchWriter is closed.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	writer   *ingest.BatchWriter

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	stopped bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	Workflow      workflow.StatusSummary
	Ingest        ingest.Stats
	IngestPending int
	StoreDriver   string
	StoreLocation string
	LockFilePath  string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, wf *workflow.Manager, writer *ingest.BatchWriter, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil || writer == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, and batch writer")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		writer:   writer,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, then starts the writer and the workflow.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.stopped {
		return errors.New("daemon already stopped")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another inboxq daemon holds %s", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.writer.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start batch writer: %w", err)
	}
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.writer.Close(context.Background())
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("inboxq daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("store", d.store.Location()),
	)
	return nil
}

// Stop flushes buffered values, stops the workflow, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), flushTimeout)
	if err := d.writer.Close(flushCtx); err != nil {
		logging.WarnWithContext(d.logger, "batch writer did not drain before shutdown", "ingest_drain_timeout",
			logging.Error(err),
			logging.Int("pending", d.writer.Pending()),
			logging.String(logging.FieldImpact, "buffered values not yet flushed are lost"),
		)
	}
	cancelFlush()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.stopped = true
	d.logger.Info("inboxq daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Enqueue hands value to the BatchWriter. It never blocks on the store.
func (d *Daemon) Enqueue(value string) {
	d.writer.Enqueue(value)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:       d.running.Load(),
		Workflow:      d.workflow.Status(ctx),
		Ingest:        d.writer.Stats(),
		IngestPending: d.writer.Pending(),
		StoreDriver:   d.store.Driver(),
		StoreLocation: d.store.Location(),
		LockFilePath:  d.lockPath,
	}
}
