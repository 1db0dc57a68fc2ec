package tenancy

// Record is any persisted row the engine can reason about
type Record interface {
	GetID() int64
	// GetOrganizationID returns the owning organization, or nil for global rows
	GetOrganizationID() *int64
}

// Assignable records can be stamped with an organization on creation
type Assignable interface {
	Record
	SetOrganizationID(orgID int64)
}

// RoleAssignee is a record that holds a role, i.e. a user
type RoleAssignee interface {
	Record
	GetRoleID() int64
}

const usersResource = "users"

// Resources whose visibility is governed by permissions alone
var unscopedResources = map[string]struct{}{
	"users": {},
	"roles": {},
	"plans": {},
}

// Resources whose rows never belong to an organization
var globalResources = map[string]struct{}{
	"plans": {},
}

// IsUnscoped reports whether list queries over resource are never narrowed by organization
func IsUnscoped(resource string) bool {
	_, ok := unscopedResources[resource]
	return ok
}

// IsGlobal reports whether rows of resource carry no organization
func IsGlobal(resource string) bool {
	_, ok := globalResources[resource]
	return ok
}

// ScopeColumn returns the column holding the owning organization of resource
func ScopeColumn(resource string) string {
	if resource == "organizations" {
		return "id"
	}
	return "organization_id"
}
