// Package entityid mints tenant-scoped, human-readable public identifiers.
//
// # Overview
//
// Each row of a registered entity type gets a public ID such as
// ITM-00000042: a type prefix and a sequence that counts separately per
// organization. The mapping lives in the entity_ids table, and the
// Allocator is the only code that writes it.
//
// # Allocation
//
// GeneratePublicID is idempotent. Inside one transaction it takes a lock
// for the (organization, type) pair, reads MAX(sequence)+1 and inserts.
// PostgreSQL uses pg_advisory_xact_lock; SQLite relies on BEGIN IMMEDIATE.
// Unique constraints on (organization, type, internal id) and
// (organization, type, sequence) catch anything the lock misses, and such
// conflicts are retried with jittered backoff.
//
// Allocation is best effort. Callers log an *AllocationError and move on;
// BackfillMissingPublicIDs repairs the gaps later.
//
// # Buckets
//
// Tenant types are numbered inside their organization and skipped when a
// row has none. Organizations are numbered inside themselves. Global types
// such as plans share bucket 0. Super-admin users never get a public ID.
//
// # Registry
//
// The entity types are defined in code and can be overridden from YAML:
//
//	entity_types:
//	  - name: item
//	    prefix: AST
//	  - name: vehicle
//	    prefix: VEH
//	    table: vehicles
package entityid
