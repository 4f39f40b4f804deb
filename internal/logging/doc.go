// Package logging builds the slog loggers used by inboxq.
//
// It owns the console and JSON handlers, level and output plumbing, a tee
// handler for diagnostic debug logs, and context helpers that tag records with
// item IDs, worker names, and claim tokens. NewNop returns a logger that
// discards everything, for tests and optional wiring.
package logging
