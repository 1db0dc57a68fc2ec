package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"github.com/platinummonkey/stockroom/pkg/audit"
	"github.com/platinummonkey/stockroom/pkg/auth"
	"github.com/platinummonkey/stockroom/pkg/entityid"
	"github.com/platinummonkey/stockroom/pkg/observability"
	"github.com/platinummonkey/stockroom/pkg/rbac"
	"github.com/platinummonkey/stockroom/pkg/tenancy"
)

// ErrNotFound is returned when a row does not exist or is outside the actor's view
var ErrNotFound = errors.New("record not found")

// Entity is a row managed through a Repository. ResourceName and
// EntityType must not read the receiver, so they work on a nil value.
type Entity interface {
	tenancy.Record
	// ResourceName is the permission resource, e.g. "items"
	ResourceName() string
	// EntityType is the public ID entity type, e.g. "item"
	EntityType() string
}

// Store persists one kind of entity
type Store[T Entity] interface {
	// Query returns the base select over live rows
	Query() sq.SelectBuilder
	Select(ctx context.Context, q sq.SelectBuilder) ([]T, error)
	Insert(ctx context.Context, entity T) error
	Update(ctx context.Context, entity T) error
	Delete(ctx context.Context, entity T) error
}

// IDAllocator mints and removes public IDs
type IDAllocator interface {
	Registry() *entityid.Registry
	GeneratePublicID(ctx context.Context, orgID int64, entityType string, internalID int64) (*entityid.EntityID, error)
	Delete(ctx context.Context, orgID int64, entityType string, internalID int64) error
}

type options struct {
	ids    IDAllocator
	logger *observability.Logger
	audit  audit.Logger
}

// Option configures a Repository
type Option func(*options)

// WithAllocator mints public IDs for created rows
func WithAllocator(ids IDAllocator) Option {
	return func(o *options) { o.ids = ids }
}

func WithLogger(logger *observability.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithAuditLogger records mutations and allocation failures
func WithAuditLogger(logger audit.Logger) Option {
	return func(o *options) { o.audit = logger }
}

// Repository runs every read and write of T through the tenancy engine.
//
// Create authorizes, assigns the organization, inserts and then allocates a
// public ID. Update and Delete load the stored row and authorize against it
// first. Entities holding a role (users) also have the role checked on create
// and whenever the role or organization changes. A denial stops the
// operation before anything is written.
type Repository[T Entity] struct {
	store    Store[T]
	engine   *tenancy.Engine
	resource string
	opts     options
}

// New creates a repository over store
func New[T Entity](store Store[T], engine *tenancy.Engine, opts ...Option) *Repository[T] {
	o := options{
		logger: observability.NopLogger(),
		audit:  audit.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	return &Repository[T]{
		store:    store,
		engine:   engine,
		resource: zero.ResourceName(),
		opts:     o,
	}
}

// Resource returns the permission resource name of T
func (r *Repository[T]) Resource() string {
	return r.resource
}

// List returns the rows visible to the actor that match every filter
func (r *Repository[T]) List(ctx context.Context, ac *auth.ActorContext, filters ...sq.Sqlizer) ([]T, error) {
	q := r.store.Query()
	for _, f := range filters {
		q = q.Where(f)
	}
	q = r.engine.ApplyOrganizationScope(ac, q, r.resource)
	return r.store.Select(ctx, q)
}

// Get returns one row visible to the actor
func (r *Repository[T]) Get(ctx context.Context, ac *auth.ActorContext, id int64) (T, error) {
	rows, err := r.List(ctx, ac, sq.Eq{"id": id})
	if err != nil {
		var zero T
		return zero, err
	}
	if len(rows) == 0 {
		var zero T
		return zero, fmt.Errorf("%w: %s %d", ErrNotFound, r.resource, id)
	}
	return rows[0], nil
}

// load reads the stored row without organization scoping so that a
// foreign row is reported as cross_org rather than missing
func (r *Repository[T]) load(ctx context.Context, id int64) (T, error) {
	var zero T
	rows, err := r.store.Select(ctx, r.store.Query().Where(sq.Eq{"id": id}))
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("%w: %s %d", ErrNotFound, r.resource, id)
	}
	return rows[0], nil
}

// Create authorizes and inserts entity, then allocates its public ID.
// Allocation failures are logged and audited but do not fail the create.
func (r *Repository[T]) Create(ctx context.Context, ac *auth.ActorContext, entity T) error {
	if err := r.engine.Authorize(ctx, ac, rbac.ActionCreate, r.resource, entity); err != nil {
		return err
	}
	r.engine.AutoAssignOrganization(ac, entity)
	if err := r.authorizeRole(ctx, ac, rbac.ActionCreate, entity); err != nil {
		return err
	}

	if err := r.store.Insert(ctx, entity); err != nil {
		return err
	}
	r.recordMutation(ctx, ac, audit.EventTypeDataCreate, entity)
	r.allocate(ctx, ac, entity)
	return nil
}

// Update authorizes against both the stored row and the new values, then
// writes entity
func (r *Repository[T]) Update(ctx context.Context, ac *auth.ActorContext, entity T) error {
	current, err := r.load(ctx, entity.GetID())
	if err != nil {
		return err
	}
	if err := r.engine.Authorize(ctx, ac, rbac.ActionUpdate, r.resource, current); err != nil {
		return err
	}
	moved := !sameOrganization(current.GetOrganizationID(), entity.GetOrganizationID())
	if moved {
		if err := r.engine.Authorize(ctx, ac, rbac.ActionUpdate, r.resource, entity); err != nil {
			return err
		}
	}
	if moved || roleOf(current) != roleOf(entity) {
		if err := r.authorizeRole(ctx, ac, rbac.ActionUpdate, entity); err != nil {
			return err
		}
	}

	if err := r.store.Update(ctx, entity); err != nil {
		return err
	}
	r.recordMutation(ctx, ac, audit.EventTypeDataUpdate, entity)
	return nil
}

// Modify loads the row with id, authorizes against it, applies change and
// writes the result. Moving the row to another organization is authorized
// again after change runs.
func (r *Repository[T]) Modify(ctx context.Context, ac *auth.ActorContext, id int64, change func(T) error) (T, error) {
	var zero T
	current, err := r.load(ctx, id)
	if err != nil {
		return zero, err
	}
	if err := r.engine.Authorize(ctx, ac, rbac.ActionUpdate, r.resource, current); err != nil {
		return zero, err
	}

	before := copyID(current.GetOrganizationID())
	beforeRole := roleOf(current)
	if err := change(current); err != nil {
		return zero, err
	}
	moved := !sameOrganization(before, current.GetOrganizationID())
	if moved {
		if err := r.engine.Authorize(ctx, ac, rbac.ActionUpdate, r.resource, current); err != nil {
			return zero, err
		}
	}
	if moved || beforeRole != roleOf(current) {
		if err := r.authorizeRole(ctx, ac, rbac.ActionUpdate, current); err != nil {
			return zero, err
		}
	}

	if err := r.store.Update(ctx, current); err != nil {
		return zero, err
	}
	r.recordMutation(ctx, ac, audit.EventTypeDataUpdate, current)
	return current, nil
}

// Delete authorizes and deletes the row with id, then removes its public ID
func (r *Repository[T]) Delete(ctx context.Context, ac *auth.ActorContext, id int64) error {
	current, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	if err := r.engine.Authorize(ctx, ac, rbac.ActionDelete, r.resource, current); err != nil {
		return err
	}

	if err := r.store.Delete(ctx, current); err != nil {
		return err
	}
	r.recordMutation(ctx, ac, audit.EventTypeDataDelete, current)
	r.release(ctx, current)
	return nil
}

// authorizeRole checks the role held by entity, if it holds one
func (r *Repository[T]) authorizeRole(ctx context.Context, ac *auth.ActorContext, action rbac.Action, entity T) error {
	assignee, ok := any(entity).(tenancy.RoleAssignee)
	if !ok {
		return nil
	}
	return r.engine.AuthorizeRoleAssignment(ctx, ac, action, assignee)
}

// roleOf returns the role ID held by entity, or 0 for entities without roles
func roleOf(entity any) int64 {
	if assignee, ok := entity.(tenancy.RoleAssignee); ok {
		return assignee.GetRoleID()
	}
	return 0
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func sameOrganization(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// bucket returns the entity type and organization bucket entity is numbered in
func (r *Repository[T]) bucket(entity T) (entityid.EntityType, int64, bool) {
	if r.opts.ids == nil {
		return entityid.EntityType{}, 0, false
	}
	et, err := r.opts.ids.Registry().Lookup(entity.EntityType())
	if err != nil {
		return entityid.EntityType{}, 0, false
	}
	orgID, ok := et.Bucket(entity.GetOrganizationID(), entity.GetID())
	return et, orgID, ok
}

func (r *Repository[T]) allocate(ctx context.Context, ac *auth.ActorContext, entity T) {
	et, orgID, ok := r.bucket(entity)
	if !ok {
		return
	}

	if _, err := r.opts.ids.GeneratePublicID(ctx, orgID, et.Name, entity.GetID()); err != nil {
		observability.FromContext(ctx, r.opts.logger).WithFields(map[string]interface{}{
			"entity_type":     et.Name,
			"internal_id":     entity.GetID(),
			"organization_id": orgID,
		}).WithError(err).Warn("public id allocation failed; backfill will retry")

		event := r.newEvent(ctx, ac, audit.EventTypeEntityIDAllocationFailed, audit.EventStatusFailure, entity)
		event.ErrorMessage = err.Error()
		event.Metadata = map[string]interface{}{"entity_type": et.Name}
		r.log(ctx, event)
	}
}

func (r *Repository[T]) release(ctx context.Context, entity T) {
	et, orgID, ok := r.bucket(entity)
	if !ok {
		return
	}
	if err := r.opts.ids.Delete(ctx, orgID, et.Name, entity.GetID()); err != nil {
		observability.FromContext(ctx, r.opts.logger).WithFields(map[string]interface{}{
			"entity_type":     et.Name,
			"internal_id":     entity.GetID(),
			"organization_id": orgID,
		}).WithError(err).Warn("failed to remove public id")
	}
}

func (r *Repository[T]) newEvent(ctx context.Context, ac *auth.ActorContext, eventType audit.EventType, status audit.EventStatus, entity T) *audit.AuditEvent {
	event := audit.NewEvent(ctx, eventType, status)
	event.Resource = r.resource
	event.ResourceID = strconv.FormatInt(entity.GetID(), 10)
	event.Route = ac.Route()
	event.OrganizationID = entity.GetOrganizationID()
	if actor := ac.CurrentActor(); actor != nil {
		event.UserID = &actor.ID
	}
	return event
}

func (r *Repository[T]) recordMutation(ctx context.Context, ac *auth.ActorContext, eventType audit.EventType, entity T) {
	r.log(ctx, r.newEvent(ctx, ac, eventType, audit.EventStatusSuccess, entity))
}

func (r *Repository[T]) log(ctx context.Context, event *audit.AuditEvent) {
	if err := r.opts.audit.Log(ctx, event); err != nil {
		observability.FromContext(ctx, r.opts.logger).WithError(err).Error("failed to write audit event")
	}
}
