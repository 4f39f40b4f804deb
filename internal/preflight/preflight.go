package preflight

import (
	"context"

	"inboxq/internal/config"
	"inboxq/internal/processor"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for cfg. A nil store or processor
// skips the corresponding check.
func RunAll(ctx context.Context, cfg *config.Config, store Pinger, proc processor.Processor) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("State directory", cfg.Paths.StateDir)}
	if store != nil {
		results = append(results, CheckStore(ctx, store))
	}
	if proc != nil {
		results = append(results, CheckProcessor(ctx, proc))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
