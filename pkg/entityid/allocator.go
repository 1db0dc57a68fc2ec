package entityid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/stockroom/pkg/audit"
	"github.com/platinummonkey/stockroom/pkg/observability"
)

const (
	DefaultMaxAttempts = 10
	DefaultBackoff     = 5 * time.Millisecond
	DefaultBatchSize   = 500
	DefaultConcurrency = 4
	maxBackoff         = 250 * time.Millisecond
)

// Allocation outcomes reported to metrics
const (
	outcomeAllocated = "allocated"
	outcomeExisting  = "existing"
	outcomeFailed    = "failed"
)

// Allocator is the only writer of the entity_ids table
type Allocator struct {
	db          *sql.DB
	dialect     Dialect
	registry    *Registry
	maxAttempts int
	backoff     time.Duration
	batchSize   int
	concurrency int
	logger      *observability.Logger
	metrics     *observability.Metrics
	audit       audit.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// Option configures an Allocator
type Option func(*Allocator)

// WithDialect selects the database dialect. The default is Postgres.
func WithDialect(d Dialect) Option {
	return func(a *Allocator) { a.dialect = d }
}

// WithRegistry replaces the default entity type registry
func WithRegistry(r *Registry) Option {
	return func(a *Allocator) { a.registry = r }
}

// WithMaxAttempts bounds the attempts made for one allocation
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay between attempts
func WithBackoff(d time.Duration) Option {
	return func(a *Allocator) { a.backoff = d }
}

// WithBatchSize sets how many rows a backfill reads per query
func WithBatchSize(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithConcurrency bounds how many entity types BackfillAll processes at once
func WithConcurrency(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithLogger(logger *observability.Logger) Option {
	return func(a *Allocator) { a.logger = logger }
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(a *Allocator) { a.metrics = metrics }
}

// WithAuditLogger records backfill summaries in the audit trail
func WithAuditLogger(logger audit.Logger) Option {
	return func(a *Allocator) { a.audit = logger }
}

// NewAllocator creates an allocator over db
func NewAllocator(db *sql.DB, opts ...Option) *Allocator {
	a := &Allocator{
		db:          db,
		dialect:     Postgres{},
		registry:    DefaultRegistry(),
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
		logger:      observability.NopLogger(),
		audit:       audit.NewNoOpLogger(),
		tracer:      otel.Tracer("github.com/platinummonkey/stockroom/pkg/entityid"),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Registry returns the allocator's entity type registry
func (a *Allocator) Registry() *Registry {
	return a.registry
}

// GeneratePublicID returns the mapping for (orgID, entityType, internalID),
// creating it with the next sequence of that organization and type when
// none exists. Conflicting concurrent allocations are retried with jittered
// backoff; when attempts run out an *AllocationError is returned.
func (a *Allocator) GeneratePublicID(ctx context.Context, orgID int64, entityType string, internalID int64) (*EntityID, error) {
	et, err := a.registry.Lookup(entityType)
	if err != nil {
		return nil, err
	}

	ctx, span := a.tracer.Start(ctx, "entityid.GeneratePublicID", trace.WithAttributes(
		attribute.Int64("organization_id", orgID),
		attribute.String("entity_type", entityType),
		attribute.Int64("internal_id", internalID),
	))
	defer span.End()

	start := time.Now()
	var lastErr error
	attempt := 0
	for attempt < a.maxAttempts {
		attempt++

		id, created, err := a.allocateOnce(ctx, orgID, et, internalID)
		if err == nil {
			outcome := outcomeExisting
			if created {
				outcome = outcomeAllocated
			}
			a.metrics.RecordAllocation(et.Name, outcome, time.Since(start))
			span.SetAttributes(attribute.Int64("sequence", id.Sequence), attribute.Int("attempts", attempt))
			return id, nil
		}

		lastErr = err
		if !a.dialect.IsRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt == a.maxAttempts {
			lastErr = fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
			break
		}

		a.metrics.RecordAllocationRetry(et.Name)
		if err := a.sleep(ctx, attempt); err != nil {
			lastErr = err
			break
		}
	}

	a.metrics.RecordAllocation(et.Name, outcomeFailed, time.Since(start))
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "allocation failed")
	return nil, &AllocationError{
		OrganizationID: orgID,
		EntityType:     et.Name,
		InternalID:     internalID,
		Attempts:       attempt,
		Err:            lastErr,
	}
}

// sleep waits for an exponentially growing, jittered delay
func (a *Allocator) sleep(ctx context.Context, attempt int) error {
	if a.backoff <= 0 {
		return nil
	}
	delay := a.backoff << (attempt - 1)
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}
	delay = delay/2 + rand.N(delay/2+1)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// allocateOnce runs one locked read-max-then-insert transaction
func (a *Allocator) allocateOnce(ctx context.Context, orgID int64, et EntityType, internalID int64) (*EntityID, bool, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := a.dialect.Lock(ctx, tx, orgID, et.Name); err != nil {
		return nil, false, err
	}

	existing, err := scanEntityID(tx.QueryRowContext(ctx, `
		SELECT `+entityIDColumns+`
		FROM entity_ids
		WHERE organization_id = $1 AND entity_type = $2 AND internal_id = $3
	`, orgID, et.Name, internalID))
	switch {
	case err == nil:
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit: %w", err)
		}
		return existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("failed to look up mapping: %w", err)
	}

	var next int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence), 0) + 1
		FROM entity_ids
		WHERE organization_id = $1 AND entity_type = $2
	`, orgID, et.Name).Scan(&next)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read next sequence: %w", err)
	}

	now := a.now()
	id := &EntityID{
		OrganizationID: orgID,
		EntityType:     et.Name,
		Prefix:         et.Prefix,
		Sequence:       next,
		InternalID:     internalID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO entity_ids (organization_id, entity_type, prefix, sequence, internal_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, id.OrganizationID, id.EntityType, id.Prefix, id.Sequence, id.InternalID, now, now).Scan(&id.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert mapping: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}
	return id, true, nil
}

// Delete removes the mapping of a row. Missing mappings are not an error.
func (a *Allocator) Delete(ctx context.Context, orgID int64, entityType string, internalID int64) error {
	_, err := a.db.ExecContext(ctx, `
		DELETE FROM entity_ids
		WHERE organization_id = $1 AND entity_type = $2 AND internal_id = $3
	`, orgID, entityType, internalID)
	if err != nil {
		return fmt.Errorf("failed to delete entity id: %w", err)
	}
	return nil
}
