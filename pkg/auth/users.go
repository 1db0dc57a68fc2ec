package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ErrUserNotFound is returned when no live user has the requested ID
var ErrUserNotFound = errors.New("user not found")

var userColumns = []string{
	"users.id", "users.organization_id", "users.role_id", "users.username", "users.email",
	"users.is_active", "users.created_at", "users.updated_at", "users.deleted_at",
}

// UserStore persists users. Deletes are soft.
type UserStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewUserStore creates a new user store
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Query returns the base query over live users
func (s *UserStore) Query() sq.SelectBuilder {
	return sq.Select(userColumns...).
		From("users").
		Where(sq.Eq{"users.deleted_at": nil}).
		PlaceholderFormat(sq.Dollar)
}

// Select runs q and scans the users it returns
func (s *UserStore) Select(ctx context.Context, q sq.SelectBuilder) ([]*User, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		var orgID sql.NullInt64
		var deletedAt sql.NullTime
		if err := rows.Scan(
			&u.ID, &orgID, &u.RoleID, &u.Username, &u.Email,
			&u.IsActive, &u.CreatedAt, &u.UpdatedAt, &deletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if orgID.Valid {
			u.SetOrganizationID(orgID.Int64)
		}
		if deletedAt.Valid {
			u.DeletedAt = &deletedAt.Time
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return users, nil
}

// GetByID loads a live user without tenancy scoping
func (s *UserStore) GetByID(ctx context.Context, id int64) (*User, error) {
	users, err := s.Select(ctx, s.Query().Where(sq.Eq{"users.id": id}))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	return users[0], nil
}

// Insert creates the user row and sets its ID
func (s *UserStore) Insert(ctx context.Context, u *User) error {
	now := s.now()
	query, args, err := sq.Insert("users").
		Columns("organization_id", "role_id", "username", "email", "is_active", "created_at", "updated_at").
		Values(u.OrganizationID, u.RoleID, u.Username, u.Email, u.IsActive, now, now).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user insert: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&u.ID); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// Update writes the mutable user columns
func (s *UserStore) Update(ctx context.Context, u *User) error {
	now := s.now()
	query, args, err := sq.Update("users").
		Set("organization_id", u.OrganizationID).
		Set("role_id", u.RoleID).
		Set("username", u.Username).
		Set("email", u.Email).
		Set("is_active", u.IsActive).
		Set("updated_at", now).
		Where(sq.Eq{"id": u.ID, "deleted_at": nil}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("%w: %d", ErrUserNotFound, u.ID)
	}
	u.UpdatedAt = now
	return nil
}

// Delete soft-deletes the user
func (s *UserStore) Delete(ctx context.Context, u *User) error {
	now := s.now()
	query, args, err := sq.Update("users").
		Set("deleted_at", now).
		Set("is_active", false).
		Where(sq.Eq{"id": u.ID, "deleted_at": nil}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	u.DeletedAt = &now
	u.IsActive = false
	return nil
}
