package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var itemColumns = []string{
	"id", "organization_id", "location_id", "name", "sku", "quantity",
	"created_at", "updated_at", "deleted_at",
}

// ItemStore persists items. Deletes are soft.
type ItemStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewItemStore creates a new item store
func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Query returns the base query over live items
func (s *ItemStore) Query() sq.SelectBuilder {
	return sq.Select(itemColumns...).
		From("items").
		Where(sq.Eq{"deleted_at": nil}).
		OrderBy("id").
		PlaceholderFormat(sq.Dollar)
}

// Select runs q and scans the items it returns
func (s *ItemStore) Select(ctx context.Context, q sq.SelectBuilder) ([]*Item, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build item query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item := &Item{}
		var orgID, locationID sql.NullInt64
		var deletedAt sql.NullTime
		if err := rows.Scan(
			&item.ID, &orgID, &locationID, &item.Name, &item.SKU, &item.Quantity,
			&item.CreatedAt, &item.UpdatedAt, &deletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if orgID.Valid {
			item.SetOrganizationID(orgID.Int64)
		}
		if locationID.Valid {
			item.LocationID = &locationID.Int64
		}
		if deletedAt.Valid {
			item.DeletedAt = &deletedAt.Time
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	return items, nil
}

// Insert creates the item and sets its ID
func (s *ItemStore) Insert(ctx context.Context, item *Item) error {
	now := s.now()
	query, args, err := sq.Insert("items").
		Columns("organization_id", "location_id", "name", "sku", "quantity", "created_at", "updated_at").
		Values(item.OrganizationID, item.LocationID, item.Name, item.SKU, item.Quantity, now, now).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build item insert: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&item.ID); err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

// Update writes the mutable item columns
func (s *ItemStore) Update(ctx context.Context, item *Item) error {
	now := s.now()
	query, args, err := sq.Update("items").
		Set("organization_id", item.OrganizationID).
		Set("location_id", item.LocationID).
		Set("name", item.Name).
		Set("sku", item.SKU).
		Set("quantity", item.Quantity).
		Set("updated_at", now).
		Where(sq.Eq{"id": item.ID, "deleted_at": nil}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build item update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("%w: %d", ErrItemNotFound, item.ID)
	}
	item.UpdatedAt = now
	return nil
}

// Delete soft-deletes the item
func (s *ItemStore) Delete(ctx context.Context, item *Item) error {
	now := s.now()
	query, args, err := sq.Update("items").
		Set("deleted_at", now).
		Where(sq.Eq{"id": item.ID, "deleted_at": nil}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build item delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	item.DeletedAt = &now
	return nil
}
