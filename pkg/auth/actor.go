package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/stockroom/pkg/contextkeys"
)

// ErrInvalidActor is returned when an actor violates the tenancy invariant
var ErrInvalidActor = errors.New("invalid actor")

// Authentication route names. Requests routed to them bypass authorization.
const (
	RouteLogin    = "auth.login"
	RouteLogout   = "auth.logout"
	RouteRegister = "auth.register"
	RouteToken    = "auth.token"
)

var authenticationRoutes = map[string]struct{}{
	RouteLogin:    {},
	RouteLogout:   {},
	RouteRegister: {},
	RouteToken:    {},
}

// IsAuthenticationRoute reports whether the named route is one of the authentication routes
func IsAuthenticationRoute(route string) bool {
	_, ok := authenticationRoutes[route]
	return ok
}

// Validate checks that only super-admins exist outside an organization
func (a *Actor) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil actor", ErrInvalidActor)
	}
	if a.Role == nil {
		return fmt.Errorf("%w: user %d has no role", ErrInvalidActor, a.ID)
	}
	if a.OrganizationID == nil && !a.Role.IsSuperAdmin() {
		return fmt.Errorf("%w: user %d has no organization", ErrInvalidActor, a.ID)
	}
	return nil
}

// IsSuperAdmin reports whether the actor holds the super-admin system role
func (a *Actor) IsSuperAdmin() bool {
	return a != nil && a.Role.IsSuperAdmin()
}

// IsSuperAdmin reports whether actor is a super-admin. A nil actor is not.
func IsSuperAdmin(actor *Actor) bool {
	return actor.IsSuperAdmin()
}

// ExecutionKind tells whether code runs for an HTTP request or from the console
type ExecutionKind int

const (
	ExecutionRequest ExecutionKind = iota
	ExecutionConsole
)

func (k ExecutionKind) String() string {
	if k == ExecutionConsole {
		return "console"
	}
	return "request"
}

// ActorContext carries who is acting and how the code was invoked. It is
// resolved once per request and passed explicitly to the authorization
// engine. A nil *ActorContext behaves like an unauthenticated request.
type ActorContext struct {
	actor *Actor
	kind  ExecutionKind
	route string
}

// NewRequestContext creates the context of an HTTP request. actor is nil for
// unauthenticated requests; route is the matched route name.
func NewRequestContext(actor *Actor, route string) *ActorContext {
	return &ActorContext{actor: actor, kind: ExecutionRequest, route: route}
}

// NewConsoleContext creates the context of a CLI or scheduled job
func NewConsoleContext() *ActorContext {
	return &ActorContext{kind: ExecutionConsole}
}

// CurrentActor returns the authenticated actor, or nil
func (ac *ActorContext) CurrentActor() *Actor {
	if ac == nil {
		return nil
	}
	return ac.actor
}

// Kind returns the execution kind
func (ac *ActorContext) Kind() ExecutionKind {
	if ac == nil {
		return ExecutionRequest
	}
	return ac.kind
}

// Route returns the matched route name, empty outside requests
func (ac *ActorContext) Route() string {
	if ac == nil {
		return ""
	}
	return ac.route
}

// IsSuperAdmin reports whether the current actor is a super-admin
func (ac *ActorContext) IsSuperAdmin() bool {
	return IsSuperAdmin(ac.CurrentActor())
}

// ShouldSkipAuthorization is true for console execution and for the
// authentication routes, which run before an actor exists.
func (ac *ActorContext) ShouldSkipAuthorization() bool {
	if ac == nil {
		return false
	}
	return ac.kind == ExecutionConsole || IsAuthenticationRoute(ac.route)
}

// WithActorContext stores ac in ctx
func WithActorContext(ctx context.Context, ac *ActorContext) context.Context {
	return contextkeys.WithActorContext(ctx, ac)
}

// FromContext returns the actor context stored in ctx, or nil
func FromContext(ctx context.Context) *ActorContext {
	if ac, ok := ctx.Value(contextkeys.ActorContextKey).(*ActorContext); ok {
		return ac
	}
	return nil
}
