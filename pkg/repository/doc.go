// Package repository wraps entity stores with tenancy enforcement and
// public ID allocation.
//
// Every write follows the same order:
//
//	authorize -> assign organization -> persist -> allocate public id
//
// Reads are narrowed with the tenancy engine's organization scope. Stores
// only know SQL; they never see the actor.
//
//	items := repository.New[*inventory.Item](inventory.NewItemStore(db), engine,
//		repository.WithAllocator(allocator))
//	err := items.Create(ctx, auth.FromContext(ctx), &inventory.Item{Name: "Drill"})
package repository
