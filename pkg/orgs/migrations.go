package orgs

import "github.com/platinummonkey/stockroom/pkg/storage"

// Migrations returns the plans and organizations migrations (PostgreSQL dialect).
// They must run before every other component.
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Component:   "orgs",
			Version:     1,
			Description: "Create plans table",
			SQL: `
				CREATE TABLE IF NOT EXISTS plans (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					tier VARCHAR(32) NOT NULL DEFAULT 'free',
					max_items INTEGER NOT NULL DEFAULT 0,
					max_locations INTEGER NOT NULL DEFAULT 0,
					price_cents_monthly BIGINT NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Component:   "orgs",
			Version:     2,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL UNIQUE,
					plan_id BIGINT REFERENCES plans(id) ON DELETE SET NULL,
					status VARCHAR(32) NOT NULL DEFAULT 'active',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMP
				);
			`,
		},
	}
}
