package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"inboxq/internal/logging"
	"inboxq/internal/processor"
	"inboxq/internal/queue"
	"inboxq/internal/testsupport"
	"inboxq/internal/workflow"
)

func TestManagerPollOnceDispatchesIdleWorkers(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(3))
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManager(cfg, store, processor.Noop{}, logging.NewNop())
	if n, err := mgr.PollOnce(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected no dispatch on empty queue, got %d %v", n, err)
	}

	testsupport.Enqueue(t, store, queue.PriorityLow, "a", "b", "c", "d", "e")
	release := make(chan struct{})
	var once sync.Once
	blocking := processor.Func(func(context.Context, string) (bool, error) {
		<-release
		return true, nil
	})
	mgr = workflow.NewManager(cfg, store, blocking, logging.NewNop())
	t.Cleanup(func() {
		once.Do(func() { close(release) })
		mgr.Stop()
	})

	n, err := mgr.PollOnce(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("expected 3 cycles dispatched, got %d %v", n, err)
	}
	waitFor(t, 2*time.Second, func() bool { return mgr.Status(context.Background()).Cycling == 3 })

	if n, err := mgr.PollOnce(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected busy workers skipped, got %d %v", n, err)
	}

	once.Do(func() { close(release) })
	mgr.Stop()

	health, err := store.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Done != 5 {
		t.Fatalf("expected all items done after cycles drain, got %+v", health)
	}
	status := mgr.Status(context.Background())
	if status.Totals.Succeeded != 5 || status.Idle != 3 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestManagerCleanupReclaimsZombies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	mgr := workflow.NewManager(cfg, store, processor.Noop{}, logging.NewNop())

	testsupport.Enqueue(t, store, queue.PriorityLow, "finished", "abandoned", "other")
	done, err := store.Claim(ctx)
	if err != nil || done == nil {
		t.Fatalf("Claim: %v %v", done, err)
	}
	if _, err := store.Complete(ctx, done); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	// Simulates a worker that claimed and then disappeared.
	if abandoned, err := store.Claim(ctx); err != nil || abandoned == nil {
		t.Fatalf("Claim: %v %v", abandoned, err)
	}

	first, err := mgr.CleanupOnce(ctx)
	if err != nil {
		t.Fatalf("CleanupOnce: %v", err)
	}
	if first.Deleted != 1 || first.InProgress != 1 || first.Zombies != 0 {
		t.Fatalf("unexpected first sweep %+v", first)
	}
	if item := testsupport.MustGetByValue(t, store, "abandoned"); item.Status != queue.StatusProgress {
		t.Fatalf("expected one sighting to leave item in progress, got %s", item.Status)
	}

	second, err := mgr.CleanupOnce(ctx)
	if err != nil {
		t.Fatalf("CleanupOnce: %v", err)
	}
	if second.Zombies != 1 || second.Requeued != 1 {
		t.Fatalf("unexpected second sweep %+v", second)
	}
	item := testsupport.MustGetByValue(t, store, "abandoned")
	if item.Status != queue.StatusPending || item.Priority != queue.PriorityMax {
		t.Fatalf("expected zombie requeued at max priority, got %s/%s", item.Status, item.Priority)
	}

	next, err := store.Claim(ctx)
	if err != nil || next == nil || next.Item.Value != "abandoned" {
		t.Fatalf("expected zombie to jump the queue, got %+v %v", next, err)
	}
	if got := mgr.Status(ctx).LastCleanup; got.Zombies != 1 {
		t.Fatalf("expected last cleanup recorded, got %+v", got)
	}
}

func TestManagerCleanupIgnoresNewLease(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	mgr := workflow.NewManager(cfg, store, processor.Noop{}, logging.NewNop())

	testsupport.Enqueue(t, store, queue.PriorityLow, "a")
	claim, err := store.Claim(ctx)
	if err != nil || claim == nil {
		t.Fatalf("Claim: %v %v", claim, err)
	}
	if _, err := mgr.CleanupOnce(ctx); err != nil {
		t.Fatalf("CleanupOnce: %v", err)
	}

	// The row is released and claimed again between sweeps.
	if _, err := store.Release(ctx, claim); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if again, err := store.Claim(ctx); err != nil || again == nil {
		t.Fatalf("Claim: %v %v", again, err)
	}

	result, err := mgr.CleanupOnce(ctx)
	if err != nil {
		t.Fatalf("CleanupOnce: %v", err)
	}
	if result.Zombies != 0 {
		t.Fatalf("expected a fresh lease not to count as zombie, got %+v", result)
	}
	if item := testsupport.MustGetByValue(t, store, "a"); item.Status != queue.StatusProgress {
		t.Fatalf("expected item still in progress, got %s", item.Status)
	}
}

func TestManagerStartProcessesQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(4), testsupport.WithIntervals(10, 30))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var mu sync.Mutex
	seen := make(map[string]int)
	proc := processor.Func(func(_ context.Context, value string) (bool, error) {
		mu.Lock()
		seen[value]++
		mu.Unlock()
		return true, nil
	})
	mgr := workflow.NewManager(cfg, store, proc, logging.NewNop())
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)
	if err := mgr.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	values := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		values = append(values, fmt.Sprintf("job-%02d", i))
	}
	testsupport.Enqueue(t, store, queue.PriorityLow, values...)

	// Done rows are deleted by the cleanup loop, so wait for the table to empty.
	waitFor(t, 5*time.Second, func() bool {
		health, err := store.Health(ctx)
		return err == nil && health.Total == 0
	})
	mgr.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(values) {
		t.Fatalf("expected %d distinct values processed, got %d", len(values), len(seen))
	}
	for value, count := range seen {
		if count != 1 {
			t.Fatalf("value %s processed %d times", value, count)
		}
	}
	if mgr.Status(ctx).Running {
		t.Fatal("expected manager stopped")
	}
}

func TestManagerRecoversAbandonedClaim(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1), testsupport.WithIntervals(10, 20))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.Enqueue(t, store, queue.PriorityLow, "orphan")
	if claim, err := store.Claim(ctx); err != nil || claim == nil {
		t.Fatalf("Claim: %v %v", claim, err)
	}

	finished := make(chan struct{})
	var once sync.Once
	proc := processor.Func(func(_ context.Context, value string) (bool, error) {
		if value == "orphan" {
			once.Do(func() { close(finished) })
		}
		return true, nil
	})
	mgr := workflow.NewManager(cfg, store, proc, logging.NewNop())
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("abandoned item was never reclaimed and processed")
	}
}

func TestManagerRecordsStoreErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, processor.Noop{}, logging.NewNop())
	store.Close()

	if _, err := mgr.PollOnce(context.Background()); err == nil {
		t.Fatal("expected poll error")
	}
	if _, err := mgr.CleanupOnce(context.Background()); err == nil {
		t.Fatal("expected cleanup error")
	}
	if mgr.Status(context.Background()).LastError == "" {
		t.Fatal("expected last error recorded")
	}
}
