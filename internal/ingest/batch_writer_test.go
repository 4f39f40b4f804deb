package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"inboxq/internal/ingest"
	"inboxq/internal/logging"
	"inboxq/internal/queue"
	"inboxq/internal/testsupport"
)

type recordingSink struct {
	mu       sync.Mutex
	batches  [][]string
	priority []queue.Priority
	failNext int
}

func (s *recordingSink) AddOrUpdate(_ context.Context, values []string, priority queue.Priority) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return 0, errors.New("store unavailable")
	}
	s.batches = append(s.batches, append([]string(nil), values...))
	s.priority = append(s.priority, priority)
	return int64(len(values)), nil
}

func (s *recordingSink) snapshot() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.batches))
	copy(out, s.batches)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestBatchWriterFlushesWhenFull(t *testing.T) {
	sink := &recordingSink{}
	writer := ingest.NewBatchWriter(sink, logging.NewNop(),
		ingest.WithBatchSize(3),
		ingest.WithFlushDelay(time.Hour),
	)
	if err := writer.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = writer.Close(context.Background()) })

	writer.Enqueue("a")
	writer.Enqueue("b")
	if got := len(sink.snapshot()); got != 0 {
		t.Fatalf("expected no flush before batch fills, got %d batches", got)
	}
	writer.Enqueue("c")

	waitFor(t, 2*time.Second, func() bool { return len(sink.snapshot()) == 1 })
	if got := sink.snapshot()[0]; !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected batch %v", got)
	}
}

func TestBatchWriterFlushesOnTimer(t *testing.T) {
	sink := &recordingSink{}
	writer := ingest.NewBatchWriter(sink, logging.NewNop(),
		ingest.WithBatchSize(100),
		ingest.WithFlushDelay(20*time.Millisecond),
		ingest.WithPriority(queue.PriorityHigh),
	)
	if err := writer.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = writer.Close(context.Background()) })

	writer.Enqueue("x")
	writer.Enqueue("y")

	waitFor(t, 2*time.Second, func() bool { return len(sink.snapshot()) == 1 })
	sink.mu.Lock()
	priority := sink.priority[0]
	sink.mu.Unlock()
	if priority != queue.PriorityHigh {
		t.Fatalf("expected high priority batch, got %s", priority)
	}
	if stats := writer.Stats(); stats.Enqueued != 2 || stats.Flushed != 2 || stats.Batches != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestBatchWriterDedupesWithinBatch(t *testing.T) {
	sink := &recordingSink{}
	writer := ingest.NewBatchWriter(sink, logging.NewNop(), ingest.WithFlushDelay(time.Hour))
	if err := writer.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, v := range []string{"a", "b", "a", "", "b", "c"} {
		writer.Enqueue(v)
	}
	if err := writer.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	batches := sink.snapshot()
	if len(batches) != 1 || !reflect.DeepEqual(batches[0], []string{"a", "b", "", "c"}) {
		t.Fatalf("unexpected batches %v", batches)
	}

	stats := writer.Stats()
	if stats.Enqueued != 6 || stats.Flushed != 4 || stats.Merged != 2 || stats.Dropped != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Enqueued != stats.Flushed+stats.Merged+stats.Dropped {
		t.Fatalf("counters do not reconcile: %+v", stats)
	}
}

func TestBatchWriterCloseDrainsInOrder(t *testing.T) {
	sink := &recordingSink{}
	writer := ingest.NewBatchWriter(sink, logging.NewNop(),
		ingest.WithBatchSize(2),
		ingest.WithFlushDelay(time.Hour),
	)
	if err := writer.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, v := range []string{"a", "b", "c", "d", "e"} {
		writer.Enqueue(v)
	}
	if err := writer.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := [][]string{{"a", "b"}, {"c", "d"}, {"e"}}
	if got := sink.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("batches = %v, want %v", got, want)
	}
	if writer.Pending() != 0 {
		t.Fatalf("expected nothing pending after close, got %d", writer.Pending())
	}

	writer.Enqueue("late")
	if stats := writer.Stats(); stats.Dropped != 1 || stats.Enqueued != 5 {
		t.Fatalf("expected late value dropped, got %+v", stats)
	}
	if err := writer.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBatchWriterCloseWithoutStartFlushesInline(t *testing.T) {
	sink := &recordingSink{}
	writer := ingest.NewBatchWriter(sink, logging.NewNop())
	writer.Enqueue("only")
	if err := writer.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := sink.snapshot(); len(got) != 1 || got[0][0] != "only" {
		t.Fatalf("unexpected batches %v", got)
	}
}

func TestBatchWriterDropsFailedBatch(t *testing.T) {
	sink := &recordingSink{failNext: 1}
	writer := ingest.NewBatchWriter(sink, logging.NewNop(),
		ingest.WithBatchSize(2),
		ingest.WithFlushDelay(time.Hour),
	)
	if err := writer.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, v := range []string{"a", "b", "c", "d"} {
		writer.Enqueue(v)
	}
	if err := writer.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := sink.snapshot(); len(got) != 1 || !reflect.DeepEqual(got[0], []string{"c", "d"}) {
		t.Fatalf("expected only the second batch persisted, got %v", got)
	}
	stats := writer.Stats()
	if stats.FailedBatches != 1 || stats.Dropped != 2 || stats.Batches != 1 || stats.Flushed != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestBatchWriterCloseHonorsDeadline(t *testing.T) {
	block := make(chan struct{})
	sink := blockingSink{release: block}
	writer := ingest.NewBatchWriter(sink, logging.NewNop(), ingest.WithFlushDelay(time.Hour))
	if err := writer.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	writer.Enqueue("stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := writer.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	close(block)
}

type blockingSink struct{ release chan struct{} }

func (s blockingSink) AddOrUpdate(context.Context, []string, queue.Priority) (int64, error) {
	<-s.release
	return 1, nil
}

func TestBatchWriterPersistsIntoStore(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	writer := ingest.NewBatchWriter(store, logging.NewNop(),
		ingest.WithBatchSize(50),
		ingest.WithFlushDelay(10*time.Millisecond),
		ingest.WithPriority(queue.PriorityMedium),
	)
	if err := writer.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 120; i++ {
		writer.Enqueue(fmt.Sprintf("v-%d", i%100))
	}
	if err := writer.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	health, err := store.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Pending != 100 {
		t.Fatalf("expected 100 distinct pending items, got %+v", health)
	}
	if item := testsupport.MustGetByValue(t, store, "v-7"); item.Priority != queue.PriorityMedium {
		t.Fatalf("expected medium priority, got %s", item.Priority)
	}
}
