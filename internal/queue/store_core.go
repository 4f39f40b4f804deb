package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"inboxq/internal/config"
)

// Store manages inbox persistence for one database.
type Store struct {
	db       *sql.DB
	dialect  dialect
	location string
	now      func() time.Time
}

const (
	retryAttempts       = 5
	retryInitialBackoff = 10 * time.Millisecond
	retryMaxBackoff     = 200 * time.Millisecond
	pingTimeout         = 5 * time.Second
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// Open connects to the configured store and applies pending migrations.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	var (
		d        dialect
		dsn      string
		location string
	)
	switch cfg.Store.Driver {
	case config.DriverSQLite, "":
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		d = sqliteDialect
		location = cfg.SQLitePath()
		dsn = sqliteDSN(location)
	case config.DriverPostgres:
		if strings.TrimSpace(cfg.Store.DSN) == "" {
			return nil, errors.New("postgres store requires a dsn")
		}
		d = postgresDialect
		dsn = cfg.Store.DSN
		location = redactDSN(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Store.Driver)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", d.name, err)
	}
	if cfg.Store.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Store.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", d.name, err)
	}

	store := &Store{db: db, dialect: d, location: location, now: func() time.Time { return time.Now().UTC() }}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// sqliteDSN takes the write lock at BEGIN so claim transactions never upgrade
// a read lock mid-transaction.
func sqliteDSN(path string) string {
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Set("_txlock", "immediate")
	return "file:" + path + "?" + params.Encode()
}

func redactDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil || parsed.Scheme == "" {
		return "postgres"
	}
	return parsed.Redacted()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver reports the dialect name (sqlite or postgres).
func (s *Store) Driver() string {
	return s.dialect.name
}

// Location returns the database file path or the redacted connection URL.
func (s *Store) Location() string {
	return s.location
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ensureContext(ctx))
}

// retry runs op until it succeeds, fails with a non-transient error, or the
// attempts are exhausted. op must be a whole transaction or a single
// autocommit statement.
func (s *Store) retry(ctx context.Context, op func() error) error {
	delay := retryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !s.dialect.transient(lastErr) || attempt == retryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= retryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// withTx runs fn inside a transaction, retrying the whole transaction on
// transient lock conflicts. fn must be safe to re-run.
func (s *Store) withTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return s.retry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, opts)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := s.retry(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
