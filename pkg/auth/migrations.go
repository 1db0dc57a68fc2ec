package auth

import "github.com/platinummonkey/stockroom/pkg/storage"

// Migrations returns the users and api_tokens migrations (PostgreSQL dialect).
// The organizations and roles tables must exist first.
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Component:   "auth",
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT REFERENCES organizations(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id),
					username VARCHAR(255) NOT NULL UNIQUE,
					email VARCHAR(255) NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_users_organization_id ON users(organization_id);
				CREATE INDEX IF NOT EXISTS idx_users_role_id ON users(role_id);
			`,
		},
		{
			Component:   "auth",
			Version:     2,
			Description: "Create api_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_tokens (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					token_prefix VARCHAR(32) NOT NULL,
					name VARCHAR(255) NOT NULL,
					expires_at TIMESTAMP,
					last_used_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					revoked_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_api_tokens_user_id ON api_tokens(user_id);
			`,
		},
	}
}
