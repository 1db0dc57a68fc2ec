// Package orgs manages tenants and subscription plans.
//
// An Organization is the tenant boundary; its own ID doubles as its
// organization ID for scoping and public identifier allocation. Plans are
// global and carry no organization.
//
// Both stores expose a squirrel-based Query/Select pair so that callers can
// narrow queries before execution:
//
//	store := orgs.NewOrganizationStore(db)
//	active, err := store.Select(ctx, store.Query().Where(sq.Eq{"status": "active"}))
package orgs
