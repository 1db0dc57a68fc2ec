package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/stockroom/pkg/auth"
	"github.com/platinummonkey/stockroom/pkg/contextkeys"
	"github.com/platinummonkey/stockroom/pkg/rbac"
)

type fakeTokens map[string]int64

func (f fakeTokens) ValidateToken(_ context.Context, token string) (*auth.APIToken, error) {
	switch token {
	case "stk_broken":
		return nil, errors.New("connection reset")
	case "stk_revoked":
		return nil, auth.ErrTokenRevoked
	}
	userID, ok := f[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.APIToken{UserID: userID}, nil
}

type fakeActors map[int64]*auth.Actor

func (f fakeActors) Resolve(_ context.Context, userID int64) (*auth.Actor, error) {
	actor, ok := f[userID]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return actor, nil
}

func newTestRouter(t *testing.T, seen **auth.ActorContext, ctxSeen *context.Context) *mux.Router {
	t.Helper()
	orgID := int64(7)
	actors := fakeActors{
		2: {ID: 2, Username: "alice", OrganizationID: &orgID, IsActive: true,
			Role: &rbac.Role{Slug: string(rbac.RoleManager), IsSystem: true}},
		3: {ID: 3, Username: "dormant", IsActive: false,
			Role: &rbac.Role{Slug: string(rbac.RoleSuperAdmin), IsSystem: true}},
	}
	tokens := fakeTokens{"stk_alice": 2, "stk_dormant": 3, "stk_ghost": 99}

	capture := func(w http.ResponseWriter, r *http.Request) {
		*seen = auth.FromContext(r.Context())
		*ctxSeen = r.Context()
		w.WriteHeader(http.StatusNoContent)
	}

	router := mux.NewRouter()
	router.Use(NewActorMiddleware(tokens, actors, nil).Handler)
	router.HandleFunc("/api/v1/items", capture).Methods(http.MethodGet).Name("items.list")
	router.HandleFunc("/api/v1/auth/token", capture).Methods(http.MethodPost).Name(auth.RouteToken)
	return router
}

func TestActorMiddleware_ResolvesActor(t *testing.T) {
	var seen *auth.ActorContext
	var ctx context.Context
	router := newTestRouter(t, &seen, &ctx)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	req.Header.Set("Authorization", "Bearer stk_alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if seen == nil || seen.CurrentActor() == nil {
		t.Fatal("expected an actor context with an actor")
	}
	if seen.CurrentActor().Username != "alice" {
		t.Errorf("expected alice, got %s", seen.CurrentActor().Username)
	}
	if seen.Route() != "items.list" {
		t.Errorf("expected route items.list, got %q", seen.Route())
	}
	if seen.ShouldSkipAuthorization() {
		t.Error("a normal route must not skip authorization")
	}
	if contextkeys.GetUserID(ctx) != "2" || contextkeys.GetOrganizationID(ctx) != "7" {
		t.Errorf("expected user and organization IDs in context, got %q %q",
			contextkeys.GetUserID(ctx), contextkeys.GetOrganizationID(ctx))
	}
}

func TestActorMiddleware_AuthenticationRouteBypass(t *testing.T) {
	var seen *auth.ActorContext
	var ctx context.Context
	router := newTestRouter(t, &seen, &ctx)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if seen == nil {
		t.Fatal("expected an actor context")
	}
	if seen.CurrentActor() != nil {
		t.Error("authentication routes run without an actor")
	}
	if !seen.ShouldSkipAuthorization() {
		t.Error("authentication routes must skip authorization")
	}
}

func TestActorMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", status: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer stk_nobody", status: http.StatusUnauthorized},
		{name: "revoked token", header: "Bearer stk_revoked", status: http.StatusUnauthorized},
		{name: "deleted user", header: "Bearer stk_ghost", status: http.StatusUnauthorized},
		{name: "inactive user", header: "Bearer stk_dormant", status: http.StatusUnauthorized},
		{name: "store failure", header: "Bearer stk_broken", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *auth.ActorContext
			var ctx context.Context
			router := newTestRouter(t, &seen, &ctx)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if seen != nil {
				t.Error("handler should not be called")
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", ct)
			}
		})
	}
}
