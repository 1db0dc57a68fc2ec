package rbac

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Action represents a lifecycle action that is subject to authorization
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"

	// ActionBackfill repairs missing public identifiers
	ActionBackfill Action = "backfill"

	// Promotions guard assigning the manager and super-admin system roles
	ActionPromoteManager    Action = "promote_manager"
	ActionPromoteSuperAdmin Action = "promote_super_admin"
)

// IsMutation reports whether the action writes data
func (a Action) IsMutation() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

// Permission is a permission key of the form "<resource>.<action>", e.g. "items.create"
type Permission string

// PermissionFor builds the permission key guarding action on resource
func PermissionFor(resource string, action Action) Permission {
	return Permission(resource + "." + string(action))
}

// Resource returns the resource part of the key
func (p Permission) Resource() string {
	if i := strings.LastIndex(string(p), "."); i >= 0 {
		return string(p)[:i]
	}
	return string(p)
}

// Action returns the action part of the key
func (p Permission) Action() string {
	if i := strings.LastIndex(string(p), "."); i >= 0 {
		return string(p)[i+1:]
	}
	return ""
}

// crudResources are the resources whose permissions follow the plain view/create/update/delete shape
var crudResources = map[string]string{
	"items":         "inventory items",
	"locations":     "storage locations",
	"stock":         "stock levels",
	"suppliers":     "suppliers",
	"categories":    "item categories",
	"maintenances":  "maintenance records",
	"checkouts":     "check-in/check-out records",
	"users":         "users",
	"roles":         "custom roles",
	"organizations": "organizations",
	"plans":         "subscription plans",
}

// extraPermissions are the keys that do not follow the CRUD shape
var extraPermissions = map[Permission]string{
	"users.promote_manager":     "Promote a user to the manager role",
	"users.promote_super_admin": "Promote a user to the super-admin role",
	"licenses.update":           "Change the organization license",
	"system_roles.update":       "Modify built-in system roles",
	"system_roles.delete":       "Delete built-in system roles",
	"reports.view":              "View inventory reports",
	"reports.export":            "Export inventory reports",
	"entity_ids.backfill":       "Backfill missing public identifiers",
}

var availablePermissions = buildCatalog()

func buildCatalog() map[Permission]string {
	catalog := make(map[Permission]string, len(crudResources)*4+len(extraPermissions))
	for resource, noun := range crudResources {
		catalog[PermissionFor(resource, ActionView)] = "View " + noun
		catalog[PermissionFor(resource, ActionCreate)] = "Create " + noun
		catalog[PermissionFor(resource, ActionUpdate)] = "Update " + noun
		catalog[PermissionFor(resource, ActionDelete)] = "Delete " + noun
	}
	for key, description := range extraPermissions {
		catalog[key] = description
	}
	return catalog
}

// managerForbidden can never be granted to a manager or to any custom role
var managerForbidden = NewPermissionSet(
	"organizations.create",
	"organizations.delete",
	"users.promote_manager",
	"users.promote_super_admin",
	"plans.create",
	"plans.update",
	"plans.delete",
	"licenses.update",
	"system_roles.update",
	"system_roles.delete",
	"entity_ids.backfill",
)

// employeeForbidden extends managerForbidden with administrative and destructive keys
var employeeForbidden = managerForbidden.Union(NewPermissionSet(
	"users.create",
	"users.update",
	"users.delete",
	"roles.create",
	"roles.update",
	"roles.delete",
	"organizations.update",
	"items.delete",
	"locations.delete",
	"suppliers.create",
	"suppliers.update",
	"suppliers.delete",
	"categories.delete",
	"reports.export",
))

// AvailablePermissions returns a copy of the permission catalog (key -> description)
func AvailablePermissions() map[Permission]string {
	out := make(map[Permission]string, len(availablePermissions))
	for k, v := range availablePermissions {
		out[k] = v
	}
	return out
}

// IsKnownPermission reports whether p is part of the catalog
func IsKnownPermission(p Permission) bool {
	_, ok := availablePermissions[p]
	return ok
}

// ManagerForbidden returns the keys a manager may never hold or grant
func ManagerForbidden() PermissionSet {
	return managerForbidden.Clone()
}

// EmployeeForbidden returns the keys denied to the built-in employee role
func EmployeeForbidden() PermissionSet {
	return employeeForbidden.Clone()
}

// allPermissions returns every catalog key, used to deny everything
func allPermissions() PermissionSet {
	set := make(PermissionSet, len(availablePermissions))
	for k := range availablePermissions {
		set[k] = struct{}{}
	}
	return set
}

// PermissionSet is a set of permission keys.
// It is stored as a JSON array.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given keys
func NewPermissionSet(keys ...Permission) PermissionSet {
	set := make(PermissionSet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Has reports whether p is in the set
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Add inserts keys into the set
func (s PermissionSet) Add(keys ...Permission) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

// Len returns the number of keys
func (s PermissionSet) Len() int {
	return len(s)
}

// Clone returns an independent copy
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Union returns a new set with the keys of both sets
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := s.Clone()
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// ContainsAll reports whether every key of other is in s
func (s PermissionSet) ContainsAll(other PermissionSet) bool {
	for k := range other {
		if !s.Has(k) {
			return false
		}
	}
	return true
}

// Missing returns the keys of other that are absent from s, sorted
func (s PermissionSet) Missing(other PermissionSet) []Permission {
	var missing []Permission
	for k := range other {
		if !s.Has(k) {
			missing = append(missing, k)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

// Slice returns the keys in sorted order
func (s PermissionSet) Slice() []Permission {
	keys := make([]Permission, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// MarshalJSON encodes the set as a sorted JSON array
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON decodes a JSON array of keys
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var keys []Permission
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("failed to unmarshal permission set: %w", err)
	}
	*s = NewPermissionSet(keys...)
	return nil
}

// Value implements driver.Valuer
func (s PermissionSet) Value() (driver.Value, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (s *PermissionSet) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = PermissionSet{}
		return nil
	case []byte:
		if len(v) == 0 {
			*s = PermissionSet{}
			return nil
		}
		return s.UnmarshalJSON(v)
	case string:
		if v == "" {
			*s = PermissionSet{}
			return nil
		}
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into PermissionSet", src)
	}
}
