// Package services defines shared utilities consumed by the queue, workflow,
// and processor packages.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, worker names, claim tokens, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures carry a
//     consistent classification (configuration, processor, store, transient)
//     that log records expose as an error hint.
package services
