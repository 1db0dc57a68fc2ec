package entityid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/stockroom/pkg/audit"
)

// BackfillResult summarizes one backfill pass over an entity type
type BackfillResult struct {
	EntityType string `json:"entity_type"`
	Scanned    int    `json:"scanned"`
	Allocated  int    `json:"allocated"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

type missingRow struct {
	id    int64
	orgID *int64
}

// backfillQuery selects rows of et with no mapping in their bucket, after the cursor
func (a *Allocator) backfillQuery(et EntityType, after int64) sq.SelectBuilder {
	var q sq.SelectBuilder
	switch et.Scope {
	case ScopeGlobal:
		q = sq.Select("t.id", "NULL").From(et.Table+" t").
			LeftJoin("entity_ids e ON e.entity_type = ? AND e.internal_id = t.id AND e.organization_id = ?", et.Name, GlobalBucket)
	case ScopeSelf:
		q = sq.Select("t.id", "t.id").From(et.Table+" t").
			LeftJoin("entity_ids e ON e.entity_type = ? AND e.internal_id = t.id AND e.organization_id = t.id", et.Name)
	default:
		q = sq.Select("t.id", "t.organization_id").From(et.Table+" t").
			LeftJoin("entity_ids e ON e.entity_type = ? AND e.internal_id = t.id AND e.organization_id = t.organization_id", et.Name)
	}

	q = q.Where("e.id IS NULL").Where(sq.Gt{"t.id": after})
	if et.SkipSuperAdmins {
		q = q.Where("NOT EXISTS (SELECT 1 FROM roles r WHERE r.id = t.role_id AND r.is_system = ? AND r.slug = ?)", true, "super_admin")
	}
	return q.OrderBy("t.id").Limit(uint64(a.batchSize)).PlaceholderFormat(sq.Dollar)
}

func (a *Allocator) missingRows(ctx context.Context, et EntityType, after int64) ([]missingRow, error) {
	query, args, err := a.backfillQuery(et, after).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build backfill query: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s for missing public ids: %w", et.Table, err)
	}
	defer rows.Close()

	var out []missingRow
	for rows.Next() {
		var id int64
		var orgID sql.NullInt64
		if err := rows.Scan(&id, &orgID); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", et.Table, err)
		}
		row := missingRow{id: id}
		if orgID.Valid {
			row.orgID = &orgID.Int64
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// BackfillMissingPublicIDs allocates a public ID for every row of
// entityType that lacks one, in ID order. Tenant rows without an
// organization and super-admin users are skipped. Per-row failures are
// logged and counted; the pass continues.
func (a *Allocator) BackfillMissingPublicIDs(ctx context.Context, entityType string) (*BackfillResult, error) {
	et, err := a.registry.Lookup(entityType)
	if err != nil {
		return nil, err
	}

	logger := a.logger.WithField("entity_type", et.Name)
	result := &BackfillResult{EntityType: et.Name}
	var cursor int64

	for {
		batch, err := a.missingRows(ctx, et, cursor)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}

		for _, row := range batch {
			cursor = row.id
			result.Scanned++

			bucket, ok := et.Bucket(row.orgID, row.id)
			if !ok {
				result.Skipped++
				continue
			}

			if _, err := a.GeneratePublicID(ctx, bucket, et.Name, row.id); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return result, ctxErr
				}
				result.Failed++
				logger.WithFields(map[string]interface{}{
					"internal_id":     row.id,
					"organization_id": bucket,
				}).WithError(err).Warn("failed to backfill public id")
				continue
			}
			result.Allocated++
		}
	}

	a.metrics.RecordBackfill(et.Name, result.Allocated, result.Skipped, result.Failed)
	logger.WithFields(map[string]interface{}{
		"scanned":   result.Scanned,
		"allocated": result.Allocated,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	}).Info("backfill complete")

	event := audit.NewEvent(ctx, audit.EventTypeEntityIDBackfill, audit.EventStatusSuccess)
	if result.Failed > 0 {
		event.Status = audit.EventStatusFailure
	}
	event.Resource = et.Table
	event.Metadata = map[string]interface{}{
		"entity_type": et.Name,
		"scanned":     result.Scanned,
		"allocated":   result.Allocated,
		"skipped":     result.Skipped,
		"failed":      result.Failed,
	}
	if err := a.audit.Log(ctx, event); err != nil {
		logger.WithError(err).Error("failed to record backfill")
	}

	return result, nil
}

// BackfillAll backfills the given entity types, or every registered type
// when none are given, several at a time. Results are in input order.
func (a *Allocator) BackfillAll(ctx context.Context, entityTypes ...string) ([]*BackfillResult, error) {
	if len(entityTypes) == 0 {
		for _, et := range a.registry.Types() {
			entityTypes = append(entityTypes, et.Name)
		}
	}
	for _, name := range entityTypes {
		if _, err := a.registry.Lookup(name); err != nil {
			return nil, err
		}
	}

	results := make([]*BackfillResult, len(entityTypes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, name := range entityTypes {
		g.Go(func() error {
			res, err := a.BackfillMissingPublicIDs(gctx, name)
			results[i] = res
			if err != nil {
				return fmt.Errorf("backfill %s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// IsAllocationError reports whether err is an allocation failure
func IsAllocationError(err error) bool {
	var ae *AllocationError
	return errors.As(err, &ae)
}
