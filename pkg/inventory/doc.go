// Package inventory holds the tenant-scoped stock rows: items and the
// locations they are kept in. Rows are soft-deleted.
package inventory
