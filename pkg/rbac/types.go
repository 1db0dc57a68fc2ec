package rbac

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// SystemRole identifies one of the built-in roles
type SystemRole string

const (
	RoleSuperAdmin SystemRole = "super_admin"
	RoleManager    SystemRole = "manager"
	RoleEmployee   SystemRole = "employee"
)

// RoleKind distinguishes system roles from organization-defined roles
type RoleKind string

const (
	KindSystem RoleKind = "system"
	KindCustom RoleKind = "custom"
)

var (
	ErrUnknownPermission   = errors.New("unknown permission")
	ErrReservedSlug        = errors.New("slug is reserved for a system role")
	ErrInvalidRole         = errors.New("invalid role")
	ErrRoleNotFound        = errors.New("role not found")
	ErrSystemRoleImmutable = errors.New("system roles cannot be modified")
)

var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,62}$`)

// Role represents a role. A role is allowed everything in the permission
// catalog except the keys in its forbidden set.
type Role struct {
	ID             int64         `json:"id"`
	Slug           string        `json:"slug"`
	Title          string        `json:"title"`
	Forbidden      PermissionSet `json:"forbidden_permissions"`
	IsSystem       bool          `json:"is_system"`
	OrganizationID *int64        `json:"organization_id,omitempty"` // nil for system roles
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	CreatedBy      *int64        `json:"created_by,omitempty"`
}

func (r *Role) GetID() int64              { return r.ID }
func (r *Role) GetOrganizationID() *int64 { return r.OrganizationID }
func (r *Role) ResourceName() string      { return "roles" }
func (r *Role) EntityType() string        { return "role" }

// SetOrganizationID stamps the owning organization
func (r *Role) SetOrganizationID(orgID int64) {
	id := orgID
	r.OrganizationID = &id
}

// Kind returns whether the role is a system or custom role
func (r *Role) Kind() RoleKind {
	if r.IsSystem {
		return KindSystem
	}
	return KindCustom
}

// IsSuperAdmin reports whether the role is the super-admin system role
func (r *Role) IsSuperAdmin() bool {
	return r != nil && r.IsSystem && SystemRole(r.Slug) == RoleSuperAdmin
}

// PromotionAction returns the action a user needs to hand out the role, or
// "" when assigning it is covered by the plain users permissions
func (r *Role) PromotionAction() Action {
	if r == nil || !r.IsSystem {
		return ""
	}
	switch SystemRole(r.Slug) {
	case RoleSuperAdmin:
		return ActionPromoteSuperAdmin
	case RoleManager:
		return ActionPromoteManager
	default:
		return ""
	}
}

// EffectiveForbidden returns the set of keys denied to holders of the role.
//
// System roles take their set from code, never from the stored column. A
// system slug this build does not know denies the whole catalog. Custom
// roles always include the manager-forbidden keys.
func (r *Role) EffectiveForbidden() PermissionSet {
	if r == nil {
		return allPermissions()
	}
	if r.IsSystem {
		if set, ok := ForbiddenKeysForSystemRole(r.Slug); ok {
			return set
		}
		return allPermissions()
	}
	return r.Forbidden.Union(managerForbidden)
}

// IsForbidden reports whether p is in the role's effective forbidden set
func (r *Role) IsForbidden(p Permission) bool {
	return r.EffectiveForbidden().Has(p)
}

// IsAllowed reports whether holders of the role may exercise p.
// Keys missing from the catalog are never allowed.
func (r *Role) IsAllowed(p Permission) bool {
	return IsKnownPermission(p) && !r.IsForbidden(p)
}

// Validate checks the invariants a role must satisfy before it is stored
func (r *Role) Validate() error {
	if !slugPattern.MatchString(r.Slug) {
		return fmt.Errorf("%w: slug %q must be lowercase alphanumeric", ErrInvalidRole, r.Slug)
	}
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRole)
	}
	if r.IsSystem {
		if _, ok := ForbiddenKeysForSystemRole(r.Slug); !ok {
			return fmt.Errorf("%w: unknown system role %q", ErrInvalidRole, r.Slug)
		}
		if r.OrganizationID != nil {
			return fmt.Errorf("%w: system roles cannot belong to an organization", ErrInvalidRole)
		}
		return nil
	}
	if IsReservedSlug(r.Slug) {
		return fmt.Errorf("%w: %s", ErrReservedSlug, r.Slug)
	}
	for key := range r.Forbidden {
		if !IsKnownPermission(key) {
			return fmt.Errorf("%w: %s", ErrUnknownPermission, key)
		}
	}
	if missing := r.Forbidden.Missing(managerForbidden); len(missing) > 0 {
		return fmt.Errorf("%w: custom role must forbid %v", ErrInvalidRole, missing)
	}
	return nil
}

// IsReservedSlug reports whether slug names a system role
func IsReservedSlug(slug string) bool {
	switch SystemRole(slug) {
	case RoleSuperAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// ForbiddenKeysForSystemRole returns the forbidden set of a system role.
// The second value is false for slugs that are not system roles.
func ForbiddenKeysForSystemRole(slug string) (PermissionSet, bool) {
	switch SystemRole(slug) {
	case RoleSuperAdmin:
		return PermissionSet{}, true
	case RoleManager:
		return ManagerForbidden(), true
	case RoleEmployee:
		return EmployeeForbidden(), true
	default:
		return nil, false
	}
}

// NewCustomRole builds an organization role denying the requested keys.
// The manager-forbidden keys are always added.
func NewCustomRole(orgID int64, slug, title string, requested []Permission) (*Role, error) {
	for _, key := range requested {
		if !IsKnownPermission(key) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, key)
		}
	}
	if IsReservedSlug(slug) {
		return nil, fmt.Errorf("%w: %s", ErrReservedSlug, slug)
	}

	org := orgID
	role := &Role{
		Slug:           slug,
		Title:          title,
		Forbidden:      NewPermissionSet(requested...).Union(managerForbidden),
		OrganizationID: &org,
	}
	if err := role.Validate(); err != nil {
		return nil, err
	}
	return role, nil
}

// SystemRoles returns the built-in role definitions
func SystemRoles() []Role {
	return []Role{
		{
			Slug:      string(RoleSuperAdmin),
			Title:     "Super Admin",
			Forbidden: PermissionSet{},
			IsSystem:  true,
		},
		{
			Slug:      string(RoleManager),
			Title:     "Manager",
			Forbidden: ManagerForbidden(),
			IsSystem:  true,
		},
		{
			Slug:      string(RoleEmployee),
			Title:     "Employee",
			Forbidden: EmployeeForbidden(),
			IsSystem:  true,
		},
	}
}
