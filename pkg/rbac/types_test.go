package rbac

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPermissionFor(t *testing.T) {
	p := PermissionFor("items", ActionCreate)
	if p != "items.create" {
		t.Fatalf("Expected items.create, got %s", p)
	}
	if p.Resource() != "items" || p.Action() != "create" {
		t.Errorf("Unexpected split: %s / %s", p.Resource(), p.Action())
	}
}

func TestRole_PromotionAction(t *testing.T) {
	tests := []struct {
		name string
		role *Role
		want Action
	}{
		{name: "super admin", role: &Role{Slug: "super_admin", IsSystem: true}, want: ActionPromoteSuperAdmin},
		{name: "manager", role: &Role{Slug: "manager", IsSystem: true}, want: ActionPromoteManager},
		{name: "employee", role: &Role{Slug: "employee", IsSystem: true}},
		{name: "custom role named manager", role: &Role{Slug: "manager", IsSystem: false}},
		{name: "nil", role: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.PromotionAction(); got != tt.want {
				t.Errorf("PromotionAction() = %q, want %q", got, tt.want)
			}
		})
	}

	for _, action := range []Action{ActionPromoteManager, ActionPromoteSuperAdmin} {
		p := PermissionFor("users", action)
		if !IsKnownPermission(p) {
			t.Errorf("%s is not in the catalog", p)
		}
		if !ManagerForbidden().Has(p) {
			t.Errorf("%s must be forbidden to managers", p)
		}
	}
}

func TestEmployeeForbiddenIsSupersetOfManager(t *testing.T) {
	if !EmployeeForbidden().ContainsAll(ManagerForbidden()) {
		t.Fatalf("Employee forbidden set must contain every manager forbidden key, missing %v",
			EmployeeForbidden().Missing(ManagerForbidden()))
	}
}

func TestForbiddenSetsUseCatalogKeys(t *testing.T) {
	for key := range EmployeeForbidden() {
		if !IsKnownPermission(key) {
			t.Errorf("Forbidden key %s is not in the catalog", key)
		}
	}
}

func TestForbiddenKeysForSystemRole(t *testing.T) {
	tests := []struct {
		slug     string
		wantOK   bool
		expected PermissionSet
	}{
		{slug: "super_admin", wantOK: true, expected: PermissionSet{}},
		{slug: "manager", wantOK: true, expected: ManagerForbidden()},
		{slug: "employee", wantOK: true, expected: EmployeeForbidden()},
		{slug: "auditor", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			set, ok := ForbiddenKeysForSystemRole(tt.slug)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if set.Len() != tt.expected.Len() || !set.ContainsAll(tt.expected) {
				t.Errorf("Unexpected forbidden set for %s: %v", tt.slug, set.Slice())
			}
		})
	}
}

func TestManagerCannotCreatePlans(t *testing.T) {
	manager := &Role{Slug: "manager", Title: "Manager", IsSystem: true}

	if manager.IsAllowed("plans.create") {
		t.Fatal("Manager must not be allowed plans.create")
	}
	if !manager.IsAllowed("items.create") {
		t.Error("Manager should be allowed items.create")
	}
}

func TestSuperAdminAllowsCatalog(t *testing.T) {
	admin := &Role{Slug: "super_admin", Title: "Super Admin", IsSystem: true}

	if !admin.IsSuperAdmin() {
		t.Fatal("Expected super admin")
	}
	for key := range AvailablePermissions() {
		if !admin.IsAllowed(key) {
			t.Errorf("Super admin should be allowed %s", key)
		}
	}
	if admin.IsAllowed("teleport.create") {
		t.Error("Unknown keys must never be allowed")
	}
}

func TestSystemRoleIgnoresStoredForbiddenSet(t *testing.T) {
	// A tampered row cannot widen or narrow a system role
	manager := &Role{Slug: "manager", Title: "Manager", IsSystem: true, Forbidden: PermissionSet{}}
	if manager.IsAllowed("licenses.update") {
		t.Error("Stored column must not override the manager set")
	}
}

func TestUnknownSystemRoleDeniesEverything(t *testing.T) {
	role := &Role{Slug: "auditor", Title: "Auditor", IsSystem: true}
	for key := range AvailablePermissions() {
		if role.IsAllowed(key) {
			t.Fatalf("Unknown system role should deny %s", key)
		}
	}
}

func TestNilRoleDeniesEverything(t *testing.T) {
	var role *Role
	if role.IsAllowed("items.view") {
		t.Error("Nil role must deny")
	}
	if role.IsSuperAdmin() {
		t.Error("Nil role is not a super admin")
	}
}

func TestNewCustomRole(t *testing.T) {
	role, err := NewCustomRole(7, "stock-clerk", "Stock Clerk", []Permission{"items.delete"})
	if err != nil {
		t.Fatalf("Failed to build role: %v", err)
	}

	if role.Kind() != KindCustom {
		t.Errorf("Expected custom role, got %s", role.Kind())
	}
	if role.OrganizationID == nil || *role.OrganizationID != 7 {
		t.Errorf("Expected organization 7, got %v", role.OrganizationID)
	}
	if !role.Forbidden.Has("items.delete") {
		t.Error("Requested key should be forbidden")
	}
	if !role.Forbidden.ContainsAll(ManagerForbidden()) {
		t.Error("Custom role must forbid every manager forbidden key")
	}
	if role.IsAllowed("items.delete") || !role.IsAllowed("items.update") {
		t.Error("Unexpected permission evaluation")
	}
}

func TestNewCustomRoleErrors(t *testing.T) {
	if _, err := NewCustomRole(1, "clerk", "Clerk", []Permission{"items.fly"}); !errors.Is(err, ErrUnknownPermission) {
		t.Errorf("Expected ErrUnknownPermission, got %v", err)
	}
	if _, err := NewCustomRole(1, "manager", "Manager", nil); !errors.Is(err, ErrReservedSlug) {
		t.Errorf("Expected ErrReservedSlug, got %v", err)
	}
	if _, err := NewCustomRole(1, "Bad Slug", "Bad", nil); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Expected ErrInvalidRole, got %v", err)
	}
}

func TestCustomRoleEvaluationAddsManagerSet(t *testing.T) {
	// Rows written before the manager set grew still evaluate with it
	orgID := int64(3)
	role := &Role{Slug: "legacy", Title: "Legacy", OrganizationID: &orgID, Forbidden: PermissionSet{}}

	if role.IsAllowed("plans.create") {
		t.Error("Custom roles must never allow manager forbidden keys")
	}
	if err := role.Validate(); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Expected ErrInvalidRole for a role missing the manager set, got %v", err)
	}
}

func TestPermissionSetJSON(t *testing.T) {
	set := NewPermissionSet("items.delete", "items.create")

	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if string(data) != `["items.create","items.delete"]` {
		t.Errorf("Unexpected encoding: %s", data)
	}

	var decoded PermissionSet
	if err := decoded.Scan(data); err != nil {
		t.Fatalf("Failed to scan: %v", err)
	}
	if decoded.Len() != 2 || !decoded.Has("items.delete") {
		t.Errorf("Unexpected decoded set: %v", decoded.Slice())
	}

	var empty PermissionSet
	if err := empty.Scan(nil); err != nil || empty.Len() != 0 {
		t.Errorf("Expected empty set from NULL, got %v (%v)", empty, err)
	}
	if err := empty.Scan(42); err == nil {
		t.Error("Expected error scanning an int")
	}
}

func TestSystemRolesValidate(t *testing.T) {
	for _, role := range SystemRoles() {
		role := role
		if err := role.Validate(); err != nil {
			t.Errorf("System role %s failed validation: %v", role.Slug, err)
		}
	}
}
