package entityid

import "github.com/platinummonkey/stockroom/pkg/storage"

// Migrations returns the entity_ids table migrations (PostgreSQL dialect).
// public_id is computed from prefix and sequence and can never be written.
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Component:   "entityid",
			Version:     1,
			Description: "Create entity_ids table",
			SQL: `
				CREATE TABLE IF NOT EXISTS entity_ids (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL,
					entity_type VARCHAR(64) NOT NULL,
					prefix VARCHAR(8) NOT NULL,
					sequence BIGINT NOT NULL CHECK (sequence > 0),
					internal_id BIGINT NOT NULL,
					public_id VARCHAR(32) GENERATED ALWAYS AS (
						prefix || '-' || CASE
							WHEN sequence < 100000000 THEN LPAD(sequence::text, 8, '0')
							ELSE sequence::text
						END
					) STORED,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CONSTRAINT uq_entity_ids_internal UNIQUE (organization_id, entity_type, internal_id),
					CONSTRAINT uq_entity_ids_sequence UNIQUE (organization_id, entity_type, sequence)
				);

				CREATE INDEX IF NOT EXISTS idx_entity_ids_public_id ON entity_ids(organization_id, public_id);
			`,
		},
	}
}
