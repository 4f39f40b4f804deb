package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// upsertChunkSize bounds the rows (and bind parameters) of one INSERT statement.
const upsertChunkSize = 1000

// upsertConflict applies the enqueue rules on a (dedup_key, value) conflict:
// Done rows are resurrected, Pending rows only escalate, Progress rows are
// left alone.
const upsertConflict = ` ON CONFLICT (dedup_key, value) DO UPDATE SET
    status = excluded.status,
    priority = excluded.priority,
    claim_token = NULL,
    claimed_at = NULL,
    updated_at = excluded.updated_at
WHERE inbox_items.status = 0
   OR (inbox_items.status = 2 AND inbox_items.priority < excluded.priority)`

// AddOrUpdate enqueues values at priority in one transaction and returns the
// number of rows inserted or updated. Duplicates within the call are merged;
// the empty string is stored like any other value.
func (s *Store) AddOrUpdate(ctx context.Context, values []string, priority Priority) (int64, error) {
	if !priority.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPriority, int(priority))
	}
	distinct := uniqueValues(values)
	if len(distinct) == 0 {
		return 0, nil
	}
	ctx = ensureContext(ctx)
	timestamp := formatTime(s.now())

	var affected int64
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		affected = 0
		for start := 0; start < len(distinct); start += upsertChunkSize {
			chunk := distinct[start:min(start+upsertChunkSize, len(distinct))]
			query, args := buildUpsert(chunk, priority, timestamp)
			res, err := tx.ExecContext(ctx, s.dialect.rebind(query), args...)
			if err != nil {
				return fmt.Errorf("upsert items: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("upsert rows affected: %w", err)
			}
			affected += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func buildUpsert(values []string, priority Priority, timestamp string) (string, []any) {
	var b strings.Builder
	b.Grow(128 + len(values)*20 + len(upsertConflict))
	b.WriteString("INSERT INTO inbox_items (value, dedup_key, status, priority, created_at, updated_at) VALUES ")
	args := make([]any, 0, len(values)*6)
	for i, value := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, value, DedupKey(value), int(StatusPending), int(priority), timestamp, timestamp)
	}
	b.WriteString(upsertConflict)
	return b.String(), args
}

// GetByID fetches an item by identifier. It returns nil when no row matches.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), s.dialect.rebind(`SELECT `+itemColumns+` FROM inbox_items WHERE id = ?`), id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetByValue fetches the item holding value. It returns nil when no row matches.
func (s *Store) GetByValue(ctx context.Context, value string) (*Item, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		s.dialect.rebind(`SELECT `+itemColumns+` FROM inbox_items WHERE dedup_key = ? AND value = ?`),
		DedupKey(value),
		value,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by value: %w", err)
	}
	return item, nil
}

// List returns items ordered by id, optionally filtered by status.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inbox_items`
	args := make([]any, 0, len(opts.Statuses)+1)
	if len(opts.Statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(opts.Statuses)) + `)`
		for _, status := range opts.Statuses {
			args = append(args, int(status))
		}
	}
	query += ` ORDER BY id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Remove deletes the item with id regardless of status. It reports whether a
// row was deleted.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM inbox_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes every item regardless of status.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM inbox_items`)
	if err != nil {
		return 0, fmt.Errorf("clear items: %w", err)
	}
	return res.RowsAffected()
}
