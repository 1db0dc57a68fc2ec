// Package tenancy enforces organization isolation.
//
// Every tenant-scoped row belongs to exactly one organization. The Engine
// offers these operations to the persistence layer:
//
//   - ApplyOrganizationScope narrows list queries to the actor's organization.
//   - Authorize approves or denies create, update and delete calls.
//   - AuthorizeRoleAssignment guards the role a user is given. Promoting to
//     manager or super-admin needs the matching users.promote_* permission.
//   - AutoAssignOrganization stamps new rows with the actor's organization.
//
// Denials are returned as *ForbiddenError with a stable reason code
// (cross_org, no_perms, no_self_delete) that the HTTP layer maps to 403.
//
// Users, roles and plans are never narrowed by organization; access to them
// is controlled by permissions only. Super-admins see every organization,
// but cannot delete their own user. Inactive actors, super-admins included,
// are denied everything and see no scoped rows.
package tenancy
