package auth

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates organizations 1 and 2, the system roles (1 super_admin,
// 2 manager, 3 employee) and users: 1 root (super-admin, no org), 2 alice
// (manager of org 1), 3 bob (inactive employee of org 2).
func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE organizations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL
		);

		CREATE TABLE roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slug TEXT NOT NULL,
			title TEXT NOT NULL,
			forbidden_permissions TEXT NOT NULL DEFAULT '[]',
			is_system BOOLEAN NOT NULL DEFAULT 0,
			organization_id INTEGER,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			created_by INTEGER
		);

		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id INTEGER,
			role_id INTEGER NOT NULL,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			deleted_at TIMESTAMP
		);

		CREATE TABLE api_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			token_prefix TEXT NOT NULL,
			name TEXT NOT NULL,
			expires_at TIMESTAMP,
			last_used_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			revoked_at TIMESTAMP
		);

		INSERT INTO organizations (name) VALUES ('Acme'), ('Globex');

		INSERT INTO roles (slug, title, is_system) VALUES
			('super_admin', 'Super Admin', 1),
			('manager', 'Manager', 1),
			('employee', 'Employee', 1);

		INSERT INTO users (organization_id, role_id, username, email, is_active) VALUES
			(NULL, 1, 'root', 'root@example.com', 1),
			(1, 2, 'alice', 'alice@example.com', 1),
			(2, 3, 'bob', 'bob@example.com', 0);
	`)
	if err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}
