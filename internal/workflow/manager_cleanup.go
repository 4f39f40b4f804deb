package workflow

import (
	"context"
	"time"

	"inboxq/internal/logging"
	"inboxq/internal/queue"
	"inboxq/internal/services"
)

// CleanupResult summarizes one sweep.
type CleanupResult struct {
	At         time.Time
	Deleted    int64
	InProgress int
	Zombies    int
	Requeued   int64
}

// CleanupOnce deletes Done rows and requeues zombies. A zombie is a Progress
// lease present, with the same token, in both this sweep and the previous one.
// The snapshot is replaced with this sweep's leases whether or not the requeue
// succeeds.
func (m *Manager) CleanupOnce(ctx context.Context) (CleanupResult, error) {
	m.cleanupMu.Lock()
	defer m.cleanupMu.Unlock()

	result := CleanupResult{At: time.Now()}

	deleted, err := m.store.DeleteDone(ctx)
	if err != nil {
		return result, m.cleanupFailed(ctx, "delete done", err)
	}
	result.Deleted = deleted

	refs, err := m.store.InProgress(ctx)
	if err != nil {
		return result, m.cleanupFailed(ctx, "list in progress", err)
	}
	result.InProgress = len(refs)

	current := make(map[queue.ClaimRef]struct{}, len(refs))
	var zombies []queue.ClaimRef
	for _, ref := range refs {
		current[ref] = struct{}{}
		if _, seen := m.previous[ref]; seen {
			zombies = append(zombies, ref)
		}
	}
	m.previous = current
	result.Zombies = len(zombies)

	if len(zombies) > 0 {
		requeued, err := m.store.RequeueZombies(ctx, zombies)
		if err != nil {
			return result, m.cleanupFailed(ctx, "requeue zombies", err)
		}
		result.Requeued = requeued

		ids := make([]int64, 0, len(zombies))
		for _, ref := range zombies {
			ids = append(ids, ref.ID)
		}
		logging.WarnWithContext(m.logger, "reclaimed zombie items", "zombies_reclaimed",
			logging.Int64("requeued", requeued),
			logging.Any("item_ids", ids),
			logging.String(logging.FieldErrorHint, "a worker stopped mid-item; check processor timeouts"),
			logging.String(logging.FieldImpact, "items requeued at highest priority"),
		)
	}

	m.mu.Lock()
	m.lastCleanup = result
	m.mu.Unlock()

	if result.Deleted > 0 {
		m.logger.Info("cleanup sweep finished",
			logging.String(logging.FieldEventType, "cleanup_finished"),
			logging.Int64("deleted", result.Deleted),
			logging.Int("in_progress", result.InProgress),
			logging.Int("zombies", result.Zombies),
		)
	}
	return result, nil
}

func (m *Manager) cleanupFailed(ctx context.Context, operation string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.setLastError(err)
	logging.ErrorWithContext(m.logger, "cleanup sweep failed", "cleanup_failed",
		logging.String("operation", operation),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	return services.Wrap(services.ErrStore, "workflow", "cleanup", operation, err)
}
