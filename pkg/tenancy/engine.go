package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/stockroom/pkg/audit"
	"github.com/platinummonkey/stockroom/pkg/auth"
	"github.com/platinummonkey/stockroom/pkg/observability"
	"github.com/platinummonkey/stockroom/pkg/rbac"
)

// Scope modes reported to metrics
const (
	scopeUnscoped   = "unscoped_resource"
	scopeSkipped    = "skipped"
	scopeSuperAdmin = "super_admin"
	scopeScoped     = "scoped"
	scopeNone       = "impossible"
)

// Engine decides whether an actor may touch a resource and narrows list
// queries to the actor's organization. It holds no per-request state.
type Engine struct {
	logger  *observability.Logger
	metrics *observability.Metrics
	audit   audit.Logger
	tracer  trace.Tracer
	roles   auth.RoleSource
}

// ErrNoRoleSource is returned when a role assignment is checked by an engine
// built without WithRoleSource
var ErrNoRoleSource = errors.New("tenancy: role assignments need a role source")

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger used for denials
func WithLogger(logger *observability.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics enables decision counters
func WithMetrics(metrics *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithAuditLogger records denials in the audit trail
func WithAuditLogger(logger audit.Logger) Option {
	return func(e *Engine) { e.audit = logger }
}

// WithTracerProvider sets the provider spans are started from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// WithRoleSource sets where assigned roles are loaded from when checking
// role assignments
func WithRoleSource(roles auth.RoleSource) Option {
	return func(e *Engine) { e.roles = roles }
}

const tracerName = "github.com/platinummonkey/stockroom/pkg/tenancy"

// NewEngine creates an authorization engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger: observability.NopLogger(),
		audit:  audit.NewNoOpLogger(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApplyOrganizationScope narrows q to the current actor's organization.
//
// The query is returned unchanged for users, roles and plans, for active
// super-admins, and when authorization is skipped. A missing or inactive
// actor, or one without an organization, gets a predicate that matches
// nothing.
func (e *Engine) ApplyOrganizationScope(ac *auth.ActorContext, q sq.SelectBuilder, resource string) sq.SelectBuilder {
	if IsUnscoped(resource) {
		e.metrics.RecordScopedQuery(resource, scopeUnscoped)
		return q
	}
	if ac.ShouldSkipAuthorization() {
		e.metrics.RecordScopedQuery(resource, scopeSkipped)
		return q
	}

	actor := ac.CurrentActor()
	if actor == nil || !actor.IsActive {
		e.metrics.RecordScopedQuery(resource, scopeNone)
		return q.Where("1 = 0")
	}
	if actor.IsSuperAdmin() {
		e.metrics.RecordScopedQuery(resource, scopeSuperAdmin)
		return q
	}
	if actor.OrganizationID == nil {
		e.metrics.RecordScopedQuery(resource, scopeNone)
		return q.Where("1 = 0")
	}

	e.metrics.RecordScopedQuery(resource, scopeScoped)
	return q.Where(sq.Eq{ScopeColumn(resource): *actor.OrganizationID})
}

// Authorize returns nil when the current actor may perform action on record
// of resource, and a *ForbiddenError otherwise. record may be nil when there
// is no concrete row (for example a create without a payload yet).
func (e *Engine) Authorize(ctx context.Context, ac *auth.ActorContext, action rbac.Action, resource string, record Record) error {
	ctx, span := e.tracer.Start(ctx, "tenancy.Authorize", trace.WithAttributes(
		attribute.String("resource", resource),
		attribute.String("action", string(action)),
	))
	defer span.End()

	if ac.ShouldSkipAuthorization() {
		e.metrics.RecordAuthorization(resource, string(action), "allow", "skipped")
		return nil
	}

	reason, ok := e.decide(ac.CurrentActor(), action, resource, record)
	if ok {
		e.metrics.RecordAuthorization(resource, string(action), "allow", "")
		return nil
	}
	return e.deny(ctx, span, ac, action, resource, record, reason)
}

// AuthorizeRoleAssignment checks the role record is about to hold. action is
// the write carrying it (create or update). Handing out the manager or
// super-admin system role needs users.promote_manager or
// users.promote_super_admin. A custom role may only be held by users of the
// organization that owns it, whoever assigns it.
func (e *Engine) AuthorizeRoleAssignment(ctx context.Context, ac *auth.ActorContext, action rbac.Action, record RoleAssignee) error {
	ctx, span := e.tracer.Start(ctx, "tenancy.AuthorizeRoleAssignment", trace.WithAttributes(
		attribute.String("action", string(action)),
		attribute.Int64("role_id", record.GetRoleID()),
	))
	defer span.End()

	if ac.ShouldSkipAuthorization() {
		return nil
	}
	if e.roles == nil {
		return ErrNoRoleSource
	}

	role, err := e.roles.GetRole(ctx, record.GetRoleID())
	if err != nil {
		return fmt.Errorf("failed to load assigned role %d: %w", record.GetRoleID(), err)
	}

	if role.Kind() == rbac.KindCustom && !sameOrganization(role.OrganizationID, record.GetOrganizationID()) {
		return e.deny(ctx, span, ac, action, usersResource, record, ReasonCrossOrg)
	}
	if promote := role.PromotionAction(); promote != "" {
		return e.Authorize(ctx, ac, promote, usersResource, record)
	}
	return nil
}

func (e *Engine) deny(ctx context.Context, span trace.Span, ac *auth.ActorContext, action rbac.Action, resource string, record Record, reason Reason) error {
	span.SetAttributes(attribute.String("reason", string(reason)))
	e.metrics.RecordAuthorization(resource, string(action), "deny", string(reason))
	e.recordDenial(ctx, ac, action, resource, record, reason)
	return &ForbiddenError{Action: action, Resource: resource, Reason: reason}
}

func sameOrganization(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (e *Engine) decide(actor *auth.Actor, action rbac.Action, resource string, record Record) (Reason, bool) {
	if actor == nil {
		return ReasonNoPerms, false
	}

	// Nobody deletes themselves through this path, super-admins included.
	if resource == usersResource && action == rbac.ActionDelete && record != nil && record.GetID() == actor.ID {
		return ReasonNoSelfDelete, false
	}

	// Deactivation applies to super-admins too.
	if !actor.IsActive {
		return ReasonNoPerms, false
	}
	if actor.IsSuperAdmin() {
		return "", true
	}
	if actor.OrganizationID == nil {
		return ReasonNoPerms, false
	}

	if record != nil && crossesOrganization(*actor.OrganizationID, action, resource, record) {
		return ReasonCrossOrg, false
	}

	if !actor.Role.IsAllowed(rbac.PermissionFor(resource, action)) {
		return ReasonNoPerms, false
	}
	return "", true
}

// crossesOrganization reports whether touching record would leave the actor's tenant
func crossesOrganization(actorOrg int64, action rbac.Action, resource string, record Record) bool {
	recordOrg := record.GetOrganizationID()
	switch action {
	case rbac.ActionUpdate, rbac.ActionDelete:
		if recordOrg == nil {
			// Global rows are guarded by permissions; any other org-less row
			// (super-admin users, system roles) sits outside every tenant.
			return !IsGlobal(resource)
		}
		return *recordOrg != actorOrg
	case rbac.ActionCreate:
		return recordOrg != nil && *recordOrg != actorOrg
	default:
		return false
	}
}

func (e *Engine) recordDenial(ctx context.Context, ac *auth.ActorContext, action rbac.Action, resource string, record Record, reason Reason) {
	actor := ac.CurrentActor()

	fields := map[string]interface{}{
		"resource": resource,
		"action":   string(action),
		"reason":   string(reason),
	}
	event := audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied)
	event.Resource = resource
	event.Route = ac.Route()
	event.Reason = string(reason)
	event.Message = Message(reason)
	event.Metadata = map[string]interface{}{"action": string(action)}
	if actor != nil {
		event.UserID = &actor.ID
		event.OrganizationID = actor.OrganizationID
		fields["actor_id"] = actor.ID
	}
	if record != nil && record.GetID() != 0 {
		event.ResourceID = strconv.FormatInt(record.GetID(), 10)
		fields["record_id"] = record.GetID()
	}

	logger := observability.FromContext(ctx, e.logger)
	logger.WithFields(fields).Warn("authorization denied")

	if err := e.audit.Log(ctx, event); err != nil {
		logger.WithError(err).Error("failed to record authorization denial")
	}
}

// AutoAssignOrganization stamps the actor's organization on a new record
// that has none. Records with an explicit organization, records that cannot
// be assigned, and actors without an organization are left alone.
func (e *Engine) AutoAssignOrganization(ac *auth.ActorContext, record Record) {
	assignable, ok := record.(Assignable)
	if !ok || assignable.GetOrganizationID() != nil {
		return
	}
	actor := ac.CurrentActor()
	if actor == nil || actor.OrganizationID == nil {
		return
	}
	assignable.SetOrganizationID(*actor.OrganizationID)
}
