package workflow

import (
	"context"
	"errors"
	"time"

	"inboxq/internal/logging"
	"inboxq/internal/services"
)

// Start launches the poll and cleanup loops. The first poll runs immediately;
// the first sweep runs after one cleanup interval.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.pollInterval <= 0 || m.cleanupInterval <= 0 {
		m.mu.Unlock()
		return errors.New("workflow intervals must be positive")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(2)
	m.mu.Unlock()

	go m.pollLoop(runCtx)
	go m.cleanupLoop(runCtx)

	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_started"),
		logging.Int("workers", len(m.workers)),
		logging.Duration("poll_interval", m.pollInterval),
		logging.Duration("cleanup_interval", m.cleanupInterval),
	)
	return nil
}

// Stop cancels both loops and waits for them and for every dispatched cycle.
// In-flight items finish processing and resolve before Stop returns.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	wasRunning := m.running
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if wasRunning && cancel != nil {
		cancel()
		m.wg.Wait()
	}
	m.cycles.Wait()

	if wasRunning {
		m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stopped"))
	}
}

func (m *Manager) pollLoop(ctx context.Context) {
	defer m.wg.Done()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			_, _ = m.PollOnce(ctx)
			timer.Reset(m.pollInterval)
		}
	}
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	defer m.wg.Done()
	timer := time.NewTimer(m.cleanupInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			_, _ = m.CleanupOnce(ctx)
			timer.Reset(m.cleanupInterval)
		}
	}
}

// PollOnce checks the queue and, when work is pending, starts a cycle on every
// idle worker. Cycles run in the background under ctx. It returns the number
// of cycles started.
func (m *Manager) PollOnce(ctx context.Context) (int, error) {
	pending, err := m.store.HasPending(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		m.setLastError(err)
		logging.ErrorWithContext(m.logger, "queue poll failed", "poll_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return 0, services.Wrap(services.ErrStore, "workflow", "poll", "", err)
	}
	if !pending {
		return 0, nil
	}

	dispatched := 0
	for _, w := range m.workers {
		if !w.acquire() {
			continue
		}
		dispatched++
		m.cycles.Add(1)
		go m.runCycle(ctx, w)
	}
	if dispatched > 0 {
		m.logger.Debug("dispatched processing cycles",
			logging.String(logging.FieldEventType, "cycles_dispatched"),
			logging.Int("count", dispatched),
		)
	}
	return dispatched, nil
}

func (m *Manager) runCycle(ctx context.Context, w *Worker) {
	defer m.cycles.Done()
	defer w.release()

	if err := w.cycle(ctx); err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return
		}
		m.setLastError(err)
		logging.ErrorWithContext(w.logger, "processing cycle aborted", "cycle_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
		)
	}
}
