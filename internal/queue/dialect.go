package queue

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// dialect captures the SQL differences between the supported stores.
type dialect struct {
	name       string
	driverName string
	// claimLock is appended to the head-of-queue select.
	claimLock string
	// rowLock is appended to the resolve re-check.
	rowLock string
	// claimTx is passed to BeginTx for claim and resolve transactions.
	claimTx *sql.TxOptions
	// numbered placeholders ($1, $2, ...) instead of ?.
	numbered bool
	// tableExists counts inbox_items in the catalog.
	tableExists string
	transient   func(error) bool
}

var sqliteDialect = dialect{
	name:        "sqlite",
	driverName:  "sqlite",
	tableExists: "SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'inbox_items'",
	transient:   isSQLiteBusy,
}

var postgresDialect = dialect{
	name:        "postgres",
	driverName:  "pgx",
	claimLock:   " FOR UPDATE SKIP LOCKED",
	rowLock:     " FOR UPDATE",
	claimTx:     &sql.TxOptions{Isolation: sql.LevelRepeatableRead},
	numbered:    true,
	tableExists: "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'inbox_items'",
	transient:   isPostgresRetryable,
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

const (
	sqliteBusyCode   = 5
	sqliteLockedCode = 6
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		if primary := coder.Code() & 0xff; primary == sqliteBusyCode || primary == sqliteLockedCode {
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isPostgresRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	default:
		return false
	}
}
