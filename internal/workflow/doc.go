// Package workflow drives inbox items through claim, process, and resolve.
//
// A Worker runs one processing cycle at a time: it claims the head of the
// queue, hands the value to the processor outside any transaction, and
// resolves the claim in a fresh transaction. A CompareAndSwap guard keeps each
// worker single-flight; a second trigger while a cycle runs is a no-op.
//
// The Manager owns the worker pool and two independent timers. The poll loop
// checks the queue and dispatches a cycle on every idle worker. The cleanup
// loop deletes Done rows and reclaims zombies: Progress rows whose lease
// (id and claim token) was seen unchanged in two consecutive sweeps are moved
// back to Pending at the highest priority. Each timer is re-armed only after
// its own tick returns, so neither loop overlaps itself and neither waits on
// the other.
package workflow
