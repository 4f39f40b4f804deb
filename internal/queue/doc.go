// Package queue persists inbox items in a relational store and implements the
// claim, resolve, and sweep operations workers rely on.
//
// Two dialects are supported. SQLite (modernc.org/sqlite) serializes claimers
// by opening every transaction with BEGIN IMMEDIATE, so at most one claimer at
// a time reads the pending head. Postgres (pgx) selects the head with
// FOR UPDATE SKIP LOCKED so concurrent claimers each take a distinct row.
//
// Item lifecycle:
//
//	Pending(p) -> Claim -> Progress(p, token) -> Complete -> Done(p)
//	                                          -> Release  -> Pending(p)
//	Progress seen in two sweeps with the same token -> Pending(PriorityMax)
//
// A row is claimable iff its status is Pending. Progress rows carry a claim
// token; Pending and Done rows do not. Enqueue never touches Progress rows.
//
// Schema changes are added as new files under migrations/<dialect>/ and are
// applied in filename order on Open.
package queue
