package auth

import (
	"context"
	"fmt"

	"github.com/platinummonkey/stockroom/pkg/rbac"
)

// RoleSource loads roles by ID. rbac.Store and rbac.CachedStore satisfy it.
type RoleSource interface {
	GetRole(ctx context.Context, roleID int64) (*rbac.Role, error)
}

// Resolver turns an authenticated user ID into an Actor
type Resolver struct {
	users *UserStore
	roles RoleSource
}

// NewResolver creates a resolver
func NewResolver(users *UserStore, roles RoleSource) *Resolver {
	return &Resolver{users: users, roles: roles}
}

// Resolve loads the user and its role. Inactive users resolve normally with
// IsActive false; the actor middleware rejects them and the authorization
// engine denies them every action and every scoped row.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (*Actor, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	role, err := r.roles.GetRole(ctx, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role of user %d: %w", user.ID, err)
	}

	actor := &Actor{
		ID:             user.ID,
		Username:       user.Username,
		OrganizationID: user.OrganizationID,
		Role:           role,
		IsActive:       user.IsActive,
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	return actor, nil
}
