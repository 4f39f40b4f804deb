package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// DeleteDone removes every Done row.
func (s *Store) DeleteDone(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM inbox_items WHERE status = ?`, int(StatusDone))
	if err != nil {
		return 0, fmt.Errorf("delete done items: %w", err)
	}
	return res.RowsAffected()
}

// ResetInProgress returns every Progress row to Pending at its current
// priority and drops the claim. Outstanding Resolve calls for those claims
// become no-ops. Only safe while no daemon is consuming the store.
func (s *Store) ResetInProgress(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `UPDATE inbox_items
SET status = ?, claim_token = NULL, claimed_at = NULL, updated_at = ?
WHERE status = ?`,
		int(StatusPending), formatTime(s.now()), int(StatusProgress),
	)
	if err != nil {
		return 0, fmt.Errorf("reset in-progress items: %w", err)
	}
	return res.RowsAffected()
}

// InProgress returns the lease of every Progress row.
func (s *Store) InProgress(ctx context.Context) ([]ClaimRef, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		s.dialect.rebind(`SELECT id, claim_token FROM inbox_items WHERE status = ? ORDER BY id`),
		int(StatusProgress),
	)
	if err != nil {
		return nil, fmt.Errorf("list in-progress items: %w", err)
	}
	defer rows.Close()

	var refs []ClaimRef
	for rows.Next() {
		var (
			ref   ClaimRef
			token sql.NullString
		)
		if err := rows.Scan(&ref.ID, &token); err != nil {
			return nil, fmt.Errorf("scan in-progress item: %w", err)
		}
		ref.Token = token.String
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// RequeueZombies moves each still-held lease back to Pending at PriorityMax
// and returns how many rows changed. Rows whose lease has since been resolved
// or re-claimed are left alone.
func (s *Store) RequeueZombies(ctx context.Context, refs []ClaimRef) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	ctx = ensureContext(ctx)
	timestamp := formatTime(s.now())
	query := s.dialect.rebind(`UPDATE inbox_items
SET status = ?, priority = ?, claim_token = NULL, claimed_at = NULL, updated_at = ?
WHERE id = ? AND status = ? AND claim_token = ?`)

	var requeued int64
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		requeued = 0
		for _, ref := range refs {
			res, err := tx.ExecContext(ctx, query,
				int(StatusPending), int(PriorityMax), timestamp, ref.ID, int(StatusProgress), ref.Token,
			)
			if err != nil {
				return fmt.Errorf("requeue item %d: %w", ref.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("requeue rows affected: %w", err)
			}
			requeued += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return requeued, nil
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM inbox_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status, count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProgress:
			health.Progress += count
		case StatusDone:
			health.Done += count
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the backing database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		Driver:         s.dialect.name,
		Location:       s.location,
		IntegrityCheck: "skipped",
	}

	if s.dialect.name == sqliteDialect.name {
		info, err := os.Stat(s.location)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return health, nil
			}
			return health, fmt.Errorf("stat queue database: %w", err)
		}
		if info.IsDir() {
			return health, fmt.Errorf("queue database path %q is a directory", s.location)
		}
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	var tables int
	if err := s.db.QueryRowContext(connCtx, s.dialect.tableExists).Scan(&tables); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("query table info: %w", err)
	}
	health.TableExists = tables > 0

	if health.TableExists {
		columns, err := s.columns(connCtx)
		if err != nil {
			health.Error = err.Error()
			return health, err
		}
		health.ColumnsPresent = columns
		present := make(map[string]struct{}, len(columns))
		for _, col := range columns {
			present[strings.ToLower(col)] = struct{}{}
		}
		for _, col := range expectedColumns {
			if _, ok := present[col]; !ok {
				health.MissingColumns = append(health.MissingColumns, col)
			}
		}

		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM inbox_items").Scan(&health.TotalItems); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count inbox items: %w", err)
		}
	}

	if s.dialect.name == sqliteDialect.name {
		var result string
		if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&result); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("integrity check: %w", err)
		}
		health.IntegrityCheck = result
	}

	return health, nil
}

func (s *Store) columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM inbox_items LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("table columns: %w", err)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("table columns: %w", err)
	}
	return columns, rows.Err()
}
