package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Store handles role persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new role store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const roleColumns = `id, slug, title, forbidden_permissions, is_system, organization_id, created_at, updated_at, created_by`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRole(row rowScanner) (*Role, error) {
	var role Role
	var orgID, createdBy sql.NullInt64

	if err := row.Scan(
		&role.ID,
		&role.Slug,
		&role.Title,
		&role.Forbidden,
		&role.IsSystem,
		&orgID,
		&role.CreatedAt,
		&role.UpdatedAt,
		&createdBy,
	); err != nil {
		return nil, err
	}

	if orgID.Valid {
		id := orgID.Int64
		role.OrganizationID = &id
	}
	if createdBy.Valid {
		id := createdBy.Int64
		role.CreatedBy = &id
	}
	return &role, nil
}

// CreateRole validates and inserts a role
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	if err := role.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO roles (slug, title, forbidden_permissions, is_system, organization_id, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, query,
		role.Slug,
		role.Title,
		role.Forbidden,
		role.IsSystem,
		role.OrganizationID,
		now,
		now,
		role.CreatedBy,
	).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`

	role, err := scanRole(s.db.QueryRowContext(ctx, query, roleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRoleNotFound, roleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetRoleBySlug retrieves a role by slug. A role of the given organization
// shadows a system role with the same slug.
func (s *Store) GetRoleBySlug(ctx context.Context, slug string, organizationID *int64) (*Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE slug = $1 AND (organization_id = $2 OR organization_id IS NULL)
		ORDER BY CASE WHEN organization_id IS NULL THEN 1 ELSE 0 END
		LIMIT 1
	`

	role, err := scanRole(s.db.QueryRowContext(ctx, query, slug, organizationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ListRoles lists the system roles plus the custom roles of an organization.
// A nil organization lists every role.
func (s *Store) ListRoles(ctx context.Context, organizationID *int64) ([]*Role, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if organizationID == nil {
		rows, err = s.db.QueryContext(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY is_system DESC, slug, id`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+roleColumns+`
			FROM roles
			WHERE organization_id = $1 OR organization_id IS NULL
			ORDER BY is_system DESC, slug, id
		`, *organizationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// UpdateRole updates the title and forbidden set of a custom role
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	existing, err := s.GetRole(ctx, role.ID)
	if err != nil {
		return err
	}
	if existing.IsSystem || role.IsSystem {
		return ErrSystemRoleImmutable
	}
	role.OrganizationID = existing.OrganizationID
	if err := role.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE roles
		SET title = $1, forbidden_permissions = $2, updated_at = $3
		WHERE id = $4
	`, role.Title, role.Forbidden, now, role.ID)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", ErrRoleNotFound, role.ID)
	}

	role.UpdatedAt = now
	return nil
}

// DeleteRole deletes a custom role
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	existing, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemRoleImmutable
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return nil
}

// EnsureSystemRoles inserts the built-in roles that are missing and
// refreshes the stored forbidden set of those that exist.
func (s *Store) EnsureSystemRoles(ctx context.Context) error {
	for _, role := range SystemRoles() {
		role := role

		var id int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM roles WHERE slug = $1 AND is_system = $2`,
			role.Slug, true,
		).Scan(&id)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if err := s.CreateRole(ctx, &role); err != nil {
				return fmt.Errorf("failed to seed role %s: %w", role.Slug, err)
			}
		case err != nil:
			return fmt.Errorf("failed to look up role %s: %w", role.Slug, err)
		default:
			if _, err := s.db.ExecContext(ctx,
				`UPDATE roles SET title = $1, forbidden_permissions = $2, updated_at = $3 WHERE id = $4`,
				role.Title, role.Forbidden, time.Now().UTC(), id,
			); err != nil {
				return fmt.Errorf("failed to refresh role %s: %w", role.Slug, err)
			}
		}
	}
	return nil
}

// Query returns the base select over all roles, system roles first
func (s *Store) Query() sq.SelectBuilder {
	return sq.Select(roleColumns).
		From("roles").
		OrderBy("is_system DESC", "slug", "id").
		PlaceholderFormat(sq.Dollar)
}

// Select runs q and scans the roles it returns
func (s *Store) Select(ctx context.Context, q sq.SelectBuilder) ([]*Role, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build role query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *Store) Insert(ctx context.Context, role *Role) error { return s.CreateRole(ctx, role) }
func (s *Store) Update(ctx context.Context, role *Role) error { return s.UpdateRole(ctx, role) }
func (s *Store) Delete(ctx context.Context, role *Role) error { return s.DeleteRole(ctx, role.ID) }
