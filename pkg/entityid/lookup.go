package entityid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const entityIDColumns = "id, organization_id, entity_type, prefix, sequence, internal_id, created_at, updated_at"

func scanEntityID(row *sql.Row) (*EntityID, error) {
	var e EntityID
	err := row.Scan(&e.ID, &e.OrganizationID, &e.EntityType, &e.Prefix, &e.Sequence, &e.InternalID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func bucketOf(orgID *int64) int64 {
	if orgID == nil {
		return GlobalBucket
	}
	return *orgID
}

// Lookup finds the mapping behind publicID inside orgID. A nil orgID looks
// in the global bucket.
func (a *Allocator) Lookup(ctx context.Context, publicID string, orgID *int64) (*EntityID, error) {
	prefix, seq, err := Parse(publicID)
	if err != nil {
		return nil, err
	}
	et, err := a.registry.ByPrefix(prefix)
	if err != nil {
		return nil, err
	}

	id, err := scanEntityID(a.db.QueryRowContext(ctx, `
		SELECT `+entityIDColumns+`
		FROM entity_ids
		WHERE organization_id = $1 AND entity_type = $2 AND sequence = $3
	`, bucketOf(orgID), et.Name, seq))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, publicID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve public id: %w", err)
	}
	return id, nil
}

// ResolveInternalID returns the internal row ID behind publicID
func (a *Allocator) ResolveInternalID(ctx context.Context, publicID string, orgID *int64) (int64, error) {
	id, err := a.Lookup(ctx, publicID, orgID)
	if err != nil {
		return 0, err
	}
	return id.InternalID, nil
}

// GetPublicID returns the rendered public ID of a row
func (a *Allocator) GetPublicID(ctx context.Context, internalID int64, entityType string, orgID *int64) (string, error) {
	id, err := scanEntityID(a.db.QueryRowContext(ctx, `
		SELECT `+entityIDColumns+`
		FROM entity_ids
		WHERE organization_id = $1 AND entity_type = $2 AND internal_id = $3
	`, bucketOf(orgID), entityType, internalID))
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s %d", ErrNotFound, entityType, internalID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get public id: %w", err)
	}
	return id.PublicID(), nil
}
