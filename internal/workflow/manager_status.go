package workflow

import (
	"context"

	"inboxq/internal/logging"
	"inboxq/internal/processor"
	"inboxq/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running         bool
	Idle            int
	Cycling         int
	Workers         []WorkerStats
	Totals          WorkerStats
	LastError       string
	LastCleanup     CleanupResult
	QueueStats      map[queue.Status]int
	ProcessorHealth processor.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, LastCleanup: m.lastCleanup}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	summary.Workers = make([]WorkerStats, 0, len(m.workers))
	summary.Totals.Name = "total"
	for _, w := range m.workers {
		stats := w.Stats()
		summary.Workers = append(summary.Workers, stats)
		if stats.Cycling {
			summary.Cycling++
		} else {
			summary.Idle++
		}
		summary.Totals.Claimed += stats.Claimed
		summary.Totals.Succeeded += stats.Succeeded
		summary.Totals.Failed += stats.Failed
		summary.Totals.Anomalies += stats.Anomalies
	}

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats
	summary.ProcessorHealth = m.processor.HealthCheck(ctx)
	return summary
}
