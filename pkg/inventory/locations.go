package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var locationColumns = []string{
	"id", "organization_id", "name", "address", "created_at", "updated_at", "deleted_at",
}

// LocationStore persists locations. Deletes are soft.
type LocationStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewLocationStore creates a new location store
func NewLocationStore(db *sql.DB) *LocationStore {
	return &LocationStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Query returns the base query over live locations
func (s *LocationStore) Query() sq.SelectBuilder {
	return sq.Select(locationColumns...).
		From("locations").
		Where(sq.Eq{"deleted_at": nil}).
		OrderBy("id").
		PlaceholderFormat(sq.Dollar)
}

// Select runs q and scans the locations it returns
func (s *LocationStore) Select(ctx context.Context, q sq.SelectBuilder) ([]*Location, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build location query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []*Location
	for rows.Next() {
		loc := &Location{}
		var orgID sql.NullInt64
		var deletedAt sql.NullTime
		if err := rows.Scan(
			&loc.ID, &orgID, &loc.Name, &loc.Address,
			&loc.CreatedAt, &loc.UpdatedAt, &deletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		if orgID.Valid {
			loc.SetOrganizationID(orgID.Int64)
		}
		if deletedAt.Valid {
			loc.DeletedAt = &deletedAt.Time
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	return locations, nil
}

// Insert creates the location and sets its ID
func (s *LocationStore) Insert(ctx context.Context, loc *Location) error {
	now := s.now()
	query, args, err := sq.Insert("locations").
		Columns("organization_id", "name", "address", "created_at", "updated_at").
		Values(loc.OrganizationID, loc.Name, loc.Address, now, now).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build location insert: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&loc.ID); err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	loc.CreatedAt = now
	loc.UpdatedAt = now
	return nil
}

// Update writes the mutable location columns
func (s *LocationStore) Update(ctx context.Context, loc *Location) error {
	now := s.now()
	query, args, err := sq.Update("locations").
		Set("organization_id", loc.OrganizationID).
		Set("name", loc.Name).
		Set("address", loc.Address).
		Set("updated_at", now).
		Where(sq.Eq{"id": loc.ID, "deleted_at": nil}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build location update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("%w: %d", ErrLocationNotFound, loc.ID)
	}
	loc.UpdatedAt = now
	return nil
}

// Delete soft-deletes the location
func (s *LocationStore) Delete(ctx context.Context, loc *Location) error {
	now := s.now()
	query, args, err := sq.Update("locations").
		Set("deleted_at", now).
		Where(sq.Eq{"id": loc.ID, "deleted_at": nil}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build location delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	loc.DeletedAt = &now
	return nil
}
