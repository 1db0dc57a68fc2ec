// Package rbac provides the role and permission model of the Stockroom inventory API.
//
// # Overview
//
// Roles are allow-by-default and deny-by-exception: a role may exercise every
// key of the permission catalog except the keys in its forbidden set. The
// catalog is versioned in code; only role rows live in the database.
//
// # Permissions
//
// A permission key has the form "<resource>.<action>":
//
//	rbac.PermissionFor("items", rbac.ActionCreate) // "items.create"
//
// AvailablePermissions returns the catalog. Keys outside the catalog are never
// allowed, whatever the role says.
//
// # System Roles
//
// Three system roles exist and their forbidden sets come from code:
//
//	super_admin  - nothing forbidden, transcends tenancy
//	manager      - ManagerForbidden()
//	employee     - EmployeeForbidden(), a superset of the manager set
//
// A stored role flagged as system whose slug is not one of the above denies
// every key.
//
// # Custom Roles
//
// Organizations define their own roles with NewCustomRole. The manager
// forbidden set is always merged into a custom role, so no custom role can
// grant more than a manager holds:
//
//	role, err := rbac.NewCustomRole(orgID, "stock-clerk", "Stock Clerk",
//		[]rbac.Permission{"items.delete", "reports.export"})
//
// # Storage
//
// Store persists roles in the roles table. CachedStore fronts it with either
// an in-process LRUCache or a shared RedisCache:
//
//	store := rbac.NewCachedStore(rbac.NewStore(db), rbac.NewLRUCache(512, 5*time.Minute))
//	role, err := store.GetRole(ctx, user.RoleID)
//
// Run Migrations() through storage.Migrator and then Bootstrap to seed the
// system roles.
package rbac
