package entityid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Dialect isolates the database-specific parts of allocation
type Dialect interface {
	Name() string
	// Lock serializes allocation for one (organization, entity type) pair
	// until tx ends.
	Lock(ctx context.Context, tx *sql.Tx, orgID int64, entityType string) error
	// IsRetryable reports whether a failed attempt may succeed if repeated
	IsRetryable(err error) bool
}

// Postgres takes a transaction-scoped advisory lock per sequence
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Lock(ctx context.Context, tx *sql.Tx, orgID int64, entityType string) error {
	key := fmt.Sprintf("entity_ids:%d:%s", orgID, entityType)
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		return fmt.Errorf("failed to lock sequence: %w", err)
	}
	return nil
}

// Retryable PostgreSQL error codes
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
)

func (Postgres) IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case pqUniqueViolation, pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
		return true
	}
	return false
}

// SQLite relies on the database-wide write lock. Connections must be opened
// with _txlock=immediate so that the sequence read already holds it.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Lock(context.Context, *sql.Tx, int64, string) error { return nil }

// sqliteRetryable are the driver messages of SQLITE_CONSTRAINT_UNIQUE,
// SQLITE_BUSY and SQLITE_LOCKED. They are matched by text so that the
// driver, which needs cgo, stays out of non-test builds.
var sqliteRetryable = []string{
	"UNIQUE constraint failed",
	"database is locked",
	"database table is locked",
}

func (SQLite) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range sqliteRetryable {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// DialectFor returns the dialect for a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres{}, nil
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}
