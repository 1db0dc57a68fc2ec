package inventory

import "github.com/platinummonkey/stockroom/pkg/storage"

// Migrations returns the locations and items migrations (PostgreSQL dialect).
// The organizations table must exist first.
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Component:   "inventory",
			Version:     1,
			Description: "Create locations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS locations (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT REFERENCES organizations(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					address TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_locations_organization_id ON locations(organization_id);
			`,
		},
		{
			Component:   "inventory",
			Version:     2,
			Description: "Create items table",
			SQL: `
				CREATE TABLE IF NOT EXISTS items (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT REFERENCES organizations(id) ON DELETE CASCADE,
					location_id BIGINT REFERENCES locations(id) ON DELETE SET NULL,
					name VARCHAR(255) NOT NULL,
					sku VARCHAR(128) NOT NULL DEFAULT '',
					quantity INTEGER NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_items_organization_id ON items(organization_id);
				CREATE INDEX IF NOT EXISTS idx_items_location_id ON items(location_id);
			`,
		},
	}
}
