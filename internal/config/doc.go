// Package config loads, normalizes, and validates inboxq configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// INBOXQ_DSN. The Config type centralizes every knob the daemon and CLI need:
// the state directory, the store driver and DSN, worker pool sizing, poll and
// cleanup intervals, ingestion batching, the processor, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
