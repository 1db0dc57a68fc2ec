package entityid

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

const testSchema = `
	CREATE TABLE entity_ids (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		organization_id INTEGER NOT NULL,
		entity_type TEXT NOT NULL,
		prefix TEXT NOT NULL,
		sequence INTEGER NOT NULL CHECK (sequence > 0),
		internal_id INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (organization_id, entity_type, internal_id),
		UNIQUE (organization_id, entity_type, sequence)
	);

	CREATE TABLE organizations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	);

	CREATE TABLE plans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	);

	CREATE TABLE roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL,
		is_system BOOLEAN NOT NULL DEFAULT 0,
		organization_id INTEGER
	);

	CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		organization_id INTEGER,
		role_id INTEGER NOT NULL,
		username TEXT NOT NULL
	);

	CREATE TABLE items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		organization_id INTEGER,
		name TEXT NOT NULL
	);
`

// setupTestDB opens a file-backed SQLite database that takes the write lock
// at BEGIN, as the SQLite dialect requires.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entityid.db")
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL", path)

	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(8)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func newTestAllocator(db *sql.DB, opts ...Option) *Allocator {
	return NewAllocator(db, append([]Option{WithDialect(SQLite{}), WithBackoff(0)}, opts...)...)
}
