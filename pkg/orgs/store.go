package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var organizationColumns = []string{
	"id", "name", "slug", "plan_id", "status", "created_at", "updated_at", "deleted_at",
}

// OrganizationStore persists organizations. Deletes are soft.
type OrganizationStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewOrganizationStore creates a new organization store
func NewOrganizationStore(db *sql.DB) *OrganizationStore {
	return &OrganizationStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Query returns the base query over live organizations
func (s *OrganizationStore) Query() sq.SelectBuilder {
	return sq.Select(organizationColumns...).
		From("organizations").
		Where(sq.Eq{"deleted_at": nil}).
		OrderBy("id").
		PlaceholderFormat(sq.Dollar)
}

// Select runs q and scans the organizations it returns
func (s *OrganizationStore) Select(ctx context.Context, q sq.SelectBuilder) ([]*Organization, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build organization query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org := &Organization{}
		var planID sql.NullInt64
		var deletedAt sql.NullTime
		if err := rows.Scan(
			&org.ID, &org.Name, &org.Slug, &planID, &org.Status,
			&org.CreatedAt, &org.UpdatedAt, &deletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		if planID.Valid {
			org.PlanID = &planID.Int64
		}
		if deletedAt.Valid {
			org.DeletedAt = &deletedAt.Time
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query organizations: %w", err)
	}
	return orgs, nil
}

// GetOrganization loads a live organization without tenancy scoping
func (s *OrganizationStore) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	orgs, err := s.Select(ctx, s.Query().Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrOrganizationNotFound, id)
	}
	return orgs[0], nil
}

// Insert creates the organization and sets its ID. A missing slug is derived from the name.
func (s *OrganizationStore) Insert(ctx context.Context, org *Organization) error {
	if org.Slug == "" {
		org.Slug = generateSlug(org.Name)
	}
	if org.Status == "" {
		org.Status = OrgStatusActive
	}

	now := s.now()
	query, args, err := sq.Insert("organizations").
		Columns("name", "slug", "plan_id", "status", "created_at", "updated_at").
		Values(org.Name, org.Slug, org.PlanID, string(org.Status), now, now).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build organization insert: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&org.ID); err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	org.CreatedAt = now
	org.UpdatedAt = now
	return nil
}

// Update writes the mutable organization columns
func (s *OrganizationStore) Update(ctx context.Context, org *Organization) error {
	now := s.now()
	query, args, err := sq.Update("organizations").
		Set("name", org.Name).
		Set("slug", org.Slug).
		Set("plan_id", org.PlanID).
		Set("status", string(org.Status)).
		Set("updated_at", now).
		Where(sq.Eq{"id": org.ID, "deleted_at": nil}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build organization update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("%w: %d", ErrOrganizationNotFound, org.ID)
	}
	org.UpdatedAt = now
	return nil
}

// Delete soft-deletes the organization
func (s *OrganizationStore) Delete(ctx context.Context, org *Organization) error {
	now := s.now()
	query, args, err := sq.Update("organizations").
		Set("deleted_at", now).
		Where(sq.Eq{"id": org.ID, "deleted_at": nil}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build organization delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	org.DeletedAt = &now
	return nil
}

var planColumns = []string{
	"id", "name", "tier", "max_items", "max_locations", "price_cents_monthly", "created_at", "updated_at",
}

// PlanStore persists plans
type PlanStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPlanStore creates a new plan store
func NewPlanStore(db *sql.DB) *PlanStore {
	return &PlanStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Query returns the base plan query
func (s *PlanStore) Query() sq.SelectBuilder {
	return sq.Select(planColumns...).From("plans").OrderBy("id").PlaceholderFormat(sq.Dollar)
}

// Select runs q and scans the plans it returns
func (s *PlanStore) Select(ctx context.Context, q sq.SelectBuilder) ([]*Plan, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build plan query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		p := &Plan{}
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Tier, &p.MaxItems, &p.MaxLocations, &p.PriceCentsMonthly,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	return plans, nil
}

// Insert creates the plan and sets its ID
func (s *PlanStore) Insert(ctx context.Context, p *Plan) error {
	if p.Tier == "" {
		p.Tier = PlanFree
	}

	now := s.now()
	query, args, err := sq.Insert("plans").
		Columns("name", "tier", "max_items", "max_locations", "price_cents_monthly", "created_at", "updated_at").
		Values(p.Name, string(p.Tier), p.MaxItems, p.MaxLocations, p.PriceCentsMonthly, now, now).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build plan insert: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&p.ID); err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// Update writes the mutable plan columns
func (s *PlanStore) Update(ctx context.Context, p *Plan) error {
	now := s.now()
	query, args, err := sq.Update("plans").
		Set("name", p.Name).
		Set("tier", string(p.Tier)).
		Set("max_items", p.MaxItems).
		Set("max_locations", p.MaxLocations).
		Set("price_cents_monthly", p.PriceCentsMonthly).
		Set("updated_at", now).
		Where(sq.Eq{"id": p.ID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build plan update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("%w: %d", ErrPlanNotFound, p.ID)
	}
	p.UpdatedAt = now
	return nil
}

// Delete removes the plan
func (s *PlanStore) Delete(ctx context.Context, p *Plan) error {
	query, args, err := sq.Delete("plans").
		Where(sq.Eq{"id": p.ID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build plan delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return nil
}
