// Package main hosts the inboxq CLI entrypoint and command graph.
//
// Commands operate on the queue store directly: enqueue values, inspect and
// maintain the queue, validate configuration, and run the daemon in the
// foreground. SQLite and Postgres stores are both safe to use while a daemon
// is running, except for queue reset-stuck, which expects the daemon stopped.
package main
