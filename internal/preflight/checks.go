package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"inboxq/internal/processor"
)

const storeCheckTimeout = 5 * time.Second

// Pinger is satisfied by *queue.Store.
type Pinger interface {
	Ping(ctx context.Context) error
	Driver() string
	Location() string
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStore pings the queue database with a short timeout.
func CheckStore(ctx context.Context, store Pinger) Result {
	const name = "Queue store"

	checkCtx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()

	if err := store.Ping(checkCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Name: name, Detail: fmt.Sprintf("%s %s (ping timed out)", store.Driver(), store.Location())}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s %s (error: %v)", store.Driver(), store.Location(), err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s %s (reachable)", store.Driver(), store.Location())}
}

// CheckProcessor reports the processor's own readiness.
func CheckProcessor(ctx context.Context, proc processor.Processor) Result {
	health := proc.HealthCheck(ctx)
	name := "Processor"
	if health.Name != "" {
		name = fmt.Sprintf("Processor (%s)", health.Name)
	}
	detail := health.Detail
	if detail == "" {
		if health.Ready {
			detail = "ready"
		} else {
			detail = "not ready"
		}
	}
	return Result{Name: name, Passed: health.Ready, Detail: detail}
}
