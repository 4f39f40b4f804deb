// Package daemon coordinates the long-running inboxq process.
//
// It ties the queue store, the ingest BatchWriter, and the workflow manager
// into a single lifecycle guarded by a flock on <state_dir>/inboxqd.lock, so a
// second daemon on the same state directory fails fast. The daemon also
// exposes queue maintenance helpers used by the CLI.
//
// Keep orchestration here; claim and processing logic belongs to workflow and
// queue.
package daemon
