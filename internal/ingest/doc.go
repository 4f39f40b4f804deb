// Package ingest buffers producer values in memory and hands them to the
// queue store in batches.
//
// A BatchWriter never blocks its callers: Enqueue appends to a buffer and
// returns. The buffer is cut into a batch when it reaches the configured size
// or when the flush timer fires, and cut batches are flushed one at a time in
// the order they were cut. Failed batches are logged and dropped; the writer
// keeps no retry queue.
package ingest
