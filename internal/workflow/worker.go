package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"inboxq/internal/logging"
	"inboxq/internal/processor"
	"inboxq/internal/services"
)

// Worker claims and processes items one at a time.
type Worker struct {
	name      string
	store     Store
	processor processor.Processor
	logger    *slog.Logger

	cycling atomic.Bool

	claimed   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	anomalies atomic.Int64
}

// WorkerStats is a point-in-time view of one worker.
type WorkerStats struct {
	Name      string
	Cycling   bool
	Claimed   int64
	Succeeded int64
	Failed    int64
	Anomalies int64
}

// NewWorker constructs an idle worker.
func NewWorker(name string, store Store, proc processor.Processor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		name:      name,
		store:     store,
		processor: proc,
		logger:    logger.With(logging.String(logging.FieldWorker, name)),
	}
}

// Name returns the worker label used in logs.
func (w *Worker) Name() string { return w.name }

// IsCycling reports whether a processing cycle is running.
func (w *Worker) IsCycling() bool { return w.cycling.Load() }

// Stats returns the worker counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Name:      w.name,
		Cycling:   w.cycling.Load(),
		Claimed:   w.claimed.Load(),
		Succeeded: w.succeeded.Load(),
		Failed:    w.failed.Load(),
		Anomalies: w.anomalies.Load(),
	}
}

// CycleProcessing processes items until the queue is empty, ctx is cancelled,
// or the store fails. It returns nil immediately if a cycle is already running.
func (w *Worker) CycleProcessing(ctx context.Context) error {
	if !w.acquire() {
		return nil
	}
	defer w.release()
	return w.cycle(ctx)
}

func (w *Worker) acquire() bool { return w.cycling.CompareAndSwap(false, true) }

func (w *Worker) release() { w.cycling.Store(false) }

func (w *Worker) cycle(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		handled, err := w.ProcessOne(ctx)
		if err != nil {
			return err
		}
		if !handled {
			return nil
		}
	}
}

// ProcessOne claims the head of the queue, processes it, and resolves the
// claim. It reports whether an item was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claim, err := w.store.Claim(ctx)
	if err != nil {
		return false, services.Wrap(services.ErrStore, "workflow", "claim", w.name, err)
	}
	if claim == nil {
		return false, nil
	}
	w.claimed.Add(1)

	itemCtx := services.WithItemID(ctx, claim.Item.ID)
	itemCtx = services.WithWorker(itemCtx, w.name)
	itemCtx = services.WithClaimToken(itemCtx, claim.Token)
	logger := logging.WithContext(itemCtx, w.logger)

	start := time.Now()
	success := w.invoke(itemCtx, logger, claim.Item.Value)

	// Resolve even when ctx was cancelled during processing.
	resolved, err := w.store.Resolve(context.WithoutCancel(itemCtx), claim, success)
	if err != nil {
		return true, services.Wrap(services.ErrStore, "workflow", "resolve",
			fmt.Sprintf("item %d left in progress", claim.Item.ID), err)
	}
	if !resolved {
		w.anomalies.Add(1)
		logging.WarnWithContext(logger, "claim lost before resolve", "claim_lost",
			logging.Bool("success", success),
			logging.String(logging.FieldErrorHint, "item was reclaimed as a zombie or removed while processing"),
			logging.String(logging.FieldImpact, "resolution discarded; the current holder decides the outcome"),
		)
		return true, nil
	}

	if success {
		w.succeeded.Add(1)
		logger.Debug("item done",
			logging.String(logging.FieldEventType, "item_done"),
			logging.Duration("elapsed", time.Since(start)),
		)
	} else {
		w.failed.Add(1)
		logger.Info("item released for retry",
			logging.String(logging.FieldEventType, "item_released"),
			logging.String("priority", claim.Snapshot.Priority.String()),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
	return true, nil
}

// invoke runs the processor. Errors and panics count as failure.
func (w *Worker) invoke(ctx context.Context, logger *slog.Logger, value string) (success bool) {
	defer func() {
		if r := recover(); r != nil {
			success = false
			logging.ErrorWithContext(logger, "processor panicked", "processor_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, services.ErrorHint(services.ErrProcessor)),
			)
		}
	}()

	if w.processor == nil {
		return false
	}
	ok, err := w.processor.Process(ctx, value)
	if err != nil {
		logging.WarnWithContext(logger, "processor returned error", "processor_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
			logging.String(logging.FieldImpact, "item released to pending"),
		)
		return false
	}
	return ok
}
