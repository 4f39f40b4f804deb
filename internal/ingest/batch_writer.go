package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"inboxq/internal/logging"
	"inboxq/internal/queue"
)

const (
	DefaultBatchSize  = 5000
	DefaultFlushDelay = time.Second
)

// Sink persists one batch of values. *queue.Store satisfies it.
type Sink interface {
	AddOrUpdate(ctx context.Context, values []string, priority queue.Priority) (int64, error)
}

// Option customizes a BatchWriter.
type Option func(*BatchWriter)

// WithBatchSize sets the buffer length that triggers an immediate cut.
func WithBatchSize(size int) Option {
	return func(w *BatchWriter) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithFlushDelay sets how often a non-empty buffer is cut by the timer.
func WithFlushDelay(delay time.Duration) Option {
	return func(w *BatchWriter) {
		if delay > 0 {
			w.flushDelay = delay
		}
	}
}

// WithPriority sets the priority every batch is enqueued at.
func WithPriority(priority queue.Priority) Option {
	return func(w *BatchWriter) {
		if priority.Valid() {
			w.priority = priority
		}
	}
}

// Stats reports BatchWriter counters. Dropped counts values rejected after
// Close plus values in failed batches. Merged counts repeats folded into an
// earlier copy of the same batch. Once drained,
// Enqueued + rejected-after-Close == Flushed + Merged + Dropped.
type Stats struct {
	Enqueued      int64
	Flushed       int64
	Merged        int64
	Batches       int64
	FailedBatches int64
	Dropped       int64
}

// BatchWriter coalesces Enqueue calls into AddOrUpdate batches.
type BatchWriter struct {
	sink       Sink
	logger     *slog.Logger
	batchSize  int
	flushDelay time.Duration
	priority   queue.Priority

	mu      sync.Mutex
	buffer  []string
	pending [][]string
	started bool
	closed  bool

	wake    chan struct{}
	closing chan struct{}
	done    chan struct{}

	enqueued      atomic.Int64
	flushed       atomic.Int64
	merged        atomic.Int64
	batches       atomic.Int64
	failedBatches atomic.Int64
	dropped       atomic.Int64
}

// NewBatchWriter constructs a writer that flushes into sink.
func NewBatchWriter(sink Sink, logger *slog.Logger, opts ...Option) *BatchWriter {
	w := &BatchWriter{
		sink:       sink,
		logger:     logging.NewComponentLogger(logger, "ingest"),
		batchSize:  DefaultBatchSize,
		flushDelay: DefaultFlushDelay,
		priority:   queue.PriorityLow,
		wake:       make(chan struct{}, 1),
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the flusher goroutine. Flushes run on a context detached
// from ctx cancellation; cancelling ctx behaves like Close without a wait.
func (w *BatchWriter) Start(ctx context.Context) error {
	if w.sink == nil {
		return errors.New("batch writer requires a sink")
	}
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("batch writer already started")
	}
	if w.closed {
		w.mu.Unlock()
		return errors.New("batch writer closed")
	}
	w.started = true
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

// Enqueue buffers value for the next batch. It never blocks on the store.
func (w *BatchWriter) Enqueue(value string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.dropped.Add(1)
		return
	}
	w.buffer = append(w.buffer, value)
	w.enqueued.Add(1)
	full := len(w.buffer) >= w.batchSize
	if full {
		w.cutLocked()
	}
	w.mu.Unlock()

	if full {
		w.signal()
	}
}

// Close cuts the remaining buffer and waits until every pending batch has been
// flushed or ctx expires. Enqueue after Close is ignored.
func (w *BatchWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	alreadyClosed := w.closed
	w.closed = true
	w.cutLocked()
	started := w.started
	w.mu.Unlock()

	if !started {
		// Nothing is running; drain inline.
		w.drain(context.Background())
		return nil
	}
	if !alreadyClosed {
		close(w.closing)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the writer counters.
func (w *BatchWriter) Stats() Stats {
	return Stats{
		Enqueued:      w.enqueued.Load(),
		Flushed:       w.flushed.Load(),
		Merged:        w.merged.Load(),
		Batches:       w.batches.Load(),
		FailedBatches: w.failedBatches.Load(),
		Dropped:       w.dropped.Load(),
	}
}

// Pending reports buffered values plus values in cut, unflushed batches.
func (w *BatchWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.buffer)
	for _, batch := range w.pending {
		n += len(batch)
	}
	return n
}

func (w *BatchWriter) run(ctx context.Context) {
	defer close(w.done)
	flushCtx := context.WithoutCancel(ctx)

	ticker := time.NewTicker(w.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-w.wake:
			w.drain(flushCtx)
		case <-ticker.C:
			w.mu.Lock()
			w.cutLocked()
			w.mu.Unlock()
			w.drain(flushCtx)
		case <-w.closing:
			w.drain(flushCtx)
			return
		case <-ctx.Done():
			w.mu.Lock()
			w.closed = true
			w.cutLocked()
			w.mu.Unlock()
			w.drain(flushCtx)
			return
		}
	}
}

func (w *BatchWriter) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// cutLocked moves the buffer onto the pending FIFO. Caller holds mu.
func (w *BatchWriter) cutLocked() {
	if len(w.buffer) == 0 {
		return
	}
	w.pending = append(w.pending, w.buffer)
	w.buffer = nil
}

// drain flushes pending batches in FIFO order until none remain.
func (w *BatchWriter) drain(ctx context.Context) {
	for {
		w.mu.Lock()
		if len(w.pending) == 0 {
			w.mu.Unlock()
			return
		}
		batch := w.pending[0]
		w.pending[0] = nil
		w.pending = w.pending[1:]
		w.mu.Unlock()

		w.flush(ctx, batch)
	}
}

func (w *BatchWriter) flush(ctx context.Context, batch []string) {
	values := dedupe(batch)
	w.merged.Add(int64(len(batch) - len(values)))
	if len(values) == 0 {
		return
	}
	start := time.Now()
	affected, err := w.sink.AddOrUpdate(ctx, values, w.priority)
	if err != nil {
		w.failedBatches.Add(1)
		w.dropped.Add(int64(len(values)))
		logging.ErrorWithContext(w.logger, "batch flush failed", "ingest_flush_failed",
			logging.Int("batch_size", len(values)),
			logging.String("priority", w.priority.String()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check store connectivity; values in this batch were dropped"),
		)
		return
	}
	w.batches.Add(1)
	w.flushed.Add(int64(len(values)))
	w.logger.Debug("batch flushed",
		logging.String(logging.FieldEventType, "ingest_flushed"),
		logging.Int("batch_size", len(values)),
		logging.Int64("rows_affected", affected),
		logging.Duration("elapsed", time.Since(start)),
	)
}

// dedupe drops repeated values, keeping first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
