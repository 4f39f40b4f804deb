package workflow

import (
	"context"

	"inboxq/internal/queue"
)

// Store is the subset of *queue.Store the workflow depends on.
type Store interface {
	HasPending(ctx context.Context) (bool, error)
	Claim(ctx context.Context) (*queue.Claim, error)
	Resolve(ctx context.Context, claim *queue.Claim, success bool) (bool, error)
	DeleteDone(ctx context.Context) (int64, error)
	InProgress(ctx context.Context) ([]queue.ClaimRef, error)
	RequeueZombies(ctx context.Context, refs []queue.ClaimRef) (int64, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
}

var _ Store = (*queue.Store)(nil)
