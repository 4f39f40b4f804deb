// Package preflight runs readiness checks before the daemon starts and for
// the CLI health command. Each check returns a Result rather than an error so
// callers can render or log every outcome.
package preflight
