// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/platinummonkey/stockroom/pkg/contextkeys"
//   ctx = contextkeys.WithActorContext(ctx, ac)
//   ac, _ := ctx.Value(contextkeys.ActorContextKey).(*auth.ActorContext)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ActorContextKey contains *auth.ActorContext
	// Set by: middleware.ActorMiddleware (pkg/middleware/actor.go), cmd/stockroom-backfill
	// Required by: repository.Repository, tenancy.Engine callers
	// Type: *auth.ActorContext
	ActorContextKey Key = "actor_context"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: Logger, audit trail, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user ID string
	// Set by: middleware.ActorMiddleware after token validation
	// Used by: Logger, audit trail
	// Type: string
	UserIDKey Key = "user_id"

	// OrganizationIDKey contains the actor's organization ID string
	// Set by: middleware.ActorMiddleware
	// Used by: Logger, audit trail
	// Type: string
	OrganizationIDKey Key = "organization_id"

	// LoggerKey contains *observability.Logger
	// Set by: Observability middleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// WithActorContext adds the actor context to the context
func WithActorContext(ctx context.Context, ac interface{}) context.Context {
	return context.WithValue(ctx, ActorContextKey, ac)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithOrganizationID adds organization ID to the context
func WithOrganizationID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, OrganizationIDKey, orgID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetOrganizationID retrieves organization ID from context
func GetOrganizationID(ctx context.Context) string {
	if orgID, ok := ctx.Value(OrganizationIDKey).(string); ok {
		return orgID
	}
	return ""
}
