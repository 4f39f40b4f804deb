package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inboxq/internal/config"
	"inboxq/internal/logging"
	"inboxq/internal/processor"
	"inboxq/internal/queue"
)

// Manager owns the worker pool and the poll and cleanup timers.
type Manager struct {
	store           Store
	processor       processor.Processor
	logger          *slog.Logger
	workers         []*Worker
	pollInterval    time.Duration
	cleanupInterval time.Duration

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastErr     error
	lastCleanup CleanupResult

	cycles sync.WaitGroup

	// cleanupMu serializes sweeps and guards previous.
	cleanupMu sync.Mutex
	previous  map[queue.ClaimRef]struct{}
}

// NewManager constructs a manager with workers.count workers.
func NewManager(cfg *config.Config, store Store, proc processor.Processor, logger *slog.Logger) *Manager {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	if proc == nil {
		proc = processor.Noop{}
	}
	logger = logging.NewComponentLogger(logger, "workflow")

	count := min(max(cfg.Workers.Count, config.MinWorkerCount), config.MaxWorkerCount)
	workers := make([]*Worker, 0, count)
	for i := 1; i <= count; i++ {
		workers = append(workers, NewWorker(fmt.Sprintf("worker-%d", i), store, proc, logger))
	}

	return &Manager{
		store:           store,
		processor:       proc,
		logger:          logger,
		workers:         workers,
		pollInterval:    cfg.PollInterval(),
		cleanupInterval: cfg.CleanupInterval(),
		previous:        make(map[queue.ClaimRef]struct{}),
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
