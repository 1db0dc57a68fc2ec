// Package storage runs the versioned schema migrations of every stockroom
// component.
//
// # Migrations
//
// Each package that owns tables exposes a Migrations() function returning
// its steps. Steps are keyed by component and version and recorded in the
// schema_migrations table, so a step runs once per database:
//
//	migrator := storage.NewMigrator(db, logrus.New())
//	err := migrator.Run(ctx,
//		orgs.Migrations(),
//		rbac.Migrations(),
//		auth.Migrations(),
//		inventory.Migrations(),
//		entityid.Migrations(),
//		audit.Migrations(),
//	)
//
// Groups run in the order given so that referenced tables exist first.
// Each step runs in its own transaction together with its bookkeeping row.
//
// # Connections
//
// The postgres subpackage opens pooled lib/pq connections and the shared
// redis client, verifying both with a ping before returning them.
package storage
