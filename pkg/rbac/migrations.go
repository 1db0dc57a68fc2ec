package rbac

import (
	"context"
	"fmt"

	"github.com/platinummonkey/stockroom/pkg/storage"
)

// Migrations returns the role table migrations (PostgreSQL dialect).
// The organizations table must exist first.
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Component:   "rbac",
			Version:     1,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					slug VARCHAR(64) NOT NULL,
					title VARCHAR(255) NOT NULL,
					forbidden_permissions JSONB NOT NULL DEFAULT '[]',
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					organization_id BIGINT REFERENCES organizations(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					created_by BIGINT,
					CHECK (is_system = (organization_id IS NULL))
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_roles_org_slug ON roles(COALESCE(organization_id, 0), slug);
				CREATE INDEX IF NOT EXISTS idx_roles_organization_id ON roles(organization_id);
			`,
		},
	}
}

// Bootstrap seeds the system roles. It must run after the migrations.
func Bootstrap(ctx context.Context, store *Store) error {
	if err := store.EnsureSystemRoles(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap system roles: %w", err)
	}
	return nil
}
