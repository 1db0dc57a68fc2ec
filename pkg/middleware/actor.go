package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/stockroom/pkg/auth"
	"github.com/platinummonkey/stockroom/pkg/contextkeys"
	"github.com/platinummonkey/stockroom/pkg/httputil"
	"github.com/platinummonkey/stockroom/pkg/observability"
)

// TokenValidator checks a raw bearer token. auth.TokenStore satisfies it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.APIToken, error)
}

// ActorResolver loads the actor behind a user ID. auth.Resolver satisfies it.
type ActorResolver interface {
	Resolve(ctx context.Context, userID int64) (*auth.Actor, error)
}

// ActorMiddleware authenticates the bearer token and stores the resulting
// *auth.ActorContext in the request context. Tokens of deactivated users
// are rejected. It must run after route
// matching (router.Use) so the route name is known.
type ActorMiddleware struct {
	tokens TokenValidator
	actors ActorResolver
	logger *observability.Logger
}

// NewActorMiddleware creates a new actor middleware
func NewActorMiddleware(tokens TokenValidator, actors ActorResolver, logger *observability.Logger) *ActorMiddleware {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ActorMiddleware{tokens: tokens, actors: actors, logger: logger}
}

// Handler wraps an HTTP handler with actor resolution
func (m *ActorMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeName(r)

		// Authentication routes run before an actor exists
		if auth.IsAuthenticationRoute(route) {
			ctx := auth.WithActorContext(r.Context(), auth.NewRequestContext(nil, route))
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			httputil.WriteUnauthorized(w, "missing or invalid authorization header")
			return
		}

		apiToken, err := m.tokens.ValidateToken(r.Context(), token)
		if err != nil {
			if !isAuthError(err) {
				observability.FromContext(r.Context(), m.logger).WithError(err).Error("token validation failed")
				httputil.WriteInternalError(w)
				return
			}
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		actor, err := m.actors.Resolve(r.Context(), apiToken.UserID)
		if err != nil {
			if !isAuthError(err) {
				observability.FromContext(r.Context(), m.logger).WithError(err).Error("actor resolution failed")
				httputil.WriteInternalError(w)
				return
			}
			httputil.WriteUnauthorized(w, "unknown user")
			return
		}
		if !actor.IsActive {
			httputil.WriteUnauthorized(w, "account is inactive")
			return
		}

		ctx := auth.WithActorContext(r.Context(), auth.NewRequestContext(actor, route))
		ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(actor.ID, 10))
		if actor.OrganizationID != nil {
			ctx = contextkeys.WithOrganizationID(ctx, strconv.FormatInt(*actor.OrganizationID, 10))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func isAuthError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrTokenExpired) ||
		errors.Is(err, auth.ErrTokenRevoked) ||
		errors.Is(err, auth.ErrUserNotFound) ||
		errors.Is(err, auth.ErrInvalidActor)
}
