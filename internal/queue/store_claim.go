package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const headQuery = `SELECT ` + itemColumns + ` FROM inbox_items WHERE status = ? ORDER BY priority DESC, id ASC LIMIT 1`

// HasPending reports whether any claimable row exists. It runs the claim
// select without mutating, so rows locked by an in-flight claim are skipped.
func (s *Store) HasPending(ctx context.Context) (bool, error) {
	ctx = ensureContext(ctx)
	var found bool
	err := s.retry(ctx, func() error {
		var id int64
		err := s.db.QueryRowContext(
			ctx,
			s.dialect.rebind(`SELECT id FROM inbox_items WHERE status = ? ORDER BY priority DESC, id ASC LIMIT 1`+s.dialect.claimLock),
			int(StatusPending),
		).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			found = false
			return nil
		case err != nil:
			return err
		default:
			found = true
			return nil
		}
	})
	if err != nil {
		return false, fmt.Errorf("check pending: %w", err)
	}
	return found, nil
}

// Claim leases the head of the queue (highest priority, then lowest id) to
// the caller. It returns nil when no row is claimable.
func (s *Store) Claim(ctx context.Context) (*Claim, error) {
	ctx = ensureContext(ctx)
	var claim *Claim
	err := s.withTx(ctx, s.dialect.claimTx, func(tx *sql.Tx) error {
		claim = nil
		item, err := scanItem(tx.QueryRowContext(ctx, s.dialect.rebind(headQuery+s.dialect.claimLock), int(StatusPending)))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select head: %w", err)
		}

		snapshot := Snapshot{Status: item.Status, Priority: item.Priority}
		token := uuid.NewString()
		now := s.now()
		res, err := tx.ExecContext(ctx,
			s.dialect.rebind(`UPDATE inbox_items SET status = ?, claim_token = ?, claimed_at = ?, updated_at = ? WHERE id = ? AND status = ?`),
			int(StatusProgress), token, formatTime(now), formatTime(now), item.ID, int(StatusPending),
		)
		if err != nil {
			return fmt.Errorf("mark item %d in progress: %w", item.ID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("claim rows affected: %w", err)
		} else if n != 1 {
			return fmt.Errorf("claim item %d: row changed concurrently", item.ID)
		}

		item.Status = StatusProgress
		item.ClaimToken = token
		item.ClaimedAt = &now
		item.UpdatedAt = now
		claim = &Claim{Item: *item, Token: token, Snapshot: snapshot}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	return claim, nil
}

// Complete marks a claimed item Done. It reports false when the claim no
// longer holds the row.
func (s *Store) Complete(ctx context.Context, claim *Claim) (bool, error) {
	return s.Resolve(ctx, claim, true)
}

// Release returns a claimed item to its pre-claim state. It reports false when
// the claim no longer holds the row.
func (s *Store) Release(ctx context.Context, claim *Claim) (bool, error) {
	return s.Resolve(ctx, claim, false)
}

// Resolve ends a claim in a new transaction. The row is re-selected by id,
// Progress status, and claim token; if it no longer matches (reclaimed as a
// zombie, cleared, or deleted) nothing is written and false is returned.
func (s *Store) Resolve(ctx context.Context, claim *Claim, success bool) (bool, error) {
	if claim == nil {
		return false, ErrNilClaim
	}
	ctx = ensureContext(ctx)
	var resolved bool
	err := s.withTx(ctx, s.dialect.claimTx, func(tx *sql.Tx) error {
		resolved = false
		var id int64
		err := tx.QueryRowContext(ctx,
			s.dialect.rebind(`SELECT id FROM inbox_items WHERE id = ? AND status = ? AND claim_token = ?`+s.dialect.rowLock),
			claim.Item.ID, int(StatusProgress), claim.Token,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("recheck item %d: %w", claim.Item.ID, err)
		}

		timestamp := formatTime(s.now())
		if success {
			_, err = tx.ExecContext(ctx,
				s.dialect.rebind(`UPDATE inbox_items SET status = ?, claim_token = NULL, claimed_at = NULL, updated_at = ? WHERE id = ?`),
				int(StatusDone), timestamp, id,
			)
		} else {
			_, err = tx.ExecContext(ctx,
				s.dialect.rebind(`UPDATE inbox_items SET status = ?, priority = ?, claim_token = NULL, claimed_at = NULL, updated_at = ? WHERE id = ?`),
				int(claim.Snapshot.Status), int(claim.Snapshot.Priority), timestamp, id,
			)
		}
		if err != nil {
			return fmt.Errorf("resolve item %d: %w", id, err)
		}
		resolved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return resolved, nil
}
