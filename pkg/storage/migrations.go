package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
)

// Migration represents a versioned schema change owned by one component
type Migration struct {
	Component   string
	Version     int
	Description string
	SQL         string
}

// Migrator applies migrations and records them in schema_migrations
type Migrator struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// NewMigrator creates a migrator. A nil logger discards output.
func NewMigrator(db *sql.DB, log logrus.FieldLogger) *Migrator {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Migrator{db: db, log: log}
}

// Run applies every pending migration. Groups run in the order given so that
// referenced tables exist first; each group runs in version order. Each
// migration runs in its own transaction together with its bookkeeping row.
func (m *Migrator) Run(ctx context.Context, migrations ...[]Migration) error {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			component VARCHAR(64) NOT NULL,
			version INT NOT NULL,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (component, version)
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	var pending []Migration
	for _, group := range migrations {
		for _, migration := range Sorted(group) {
			if !applied[migrationKey(migration.Component, migration.Version)] {
				pending = append(pending, migration)
			}
		}
	}

	for _, migration := range pending {
		if err := m.apply(ctx, migration); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT component, version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var component string
		var version int
		if err := rows.Scan(&component, &version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[migrationKey(component, version)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, migration Migration) error {
	log := m.log.WithFields(logrus.Fields{
		"component": migration.Component,
		"version":   migration.Version,
	})
	log.Infof("running migration: %s", migration.Description)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %s/%d: %w", migration.Component, migration.Version, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (component, version, description) VALUES ($1, $2, $3)",
		migration.Component, migration.Version, migration.Description,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %s/%d: %w", migration.Component, migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s/%d: %w", migration.Component, migration.Version, err)
	}

	log.Info("migration completed")
	return nil
}

// Sorted returns the migrations ordered by component then version
func Sorted(migrations []Migration) []Migration {
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Component != out[j].Component {
			return out[i].Component < out[j].Component
		}
		return out[i].Version < out[j].Version
	})
	return out
}

func migrationKey(component string, version int) string {
	return fmt.Sprintf("%s/%d", component, version)
}
