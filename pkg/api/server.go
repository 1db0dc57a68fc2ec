package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/stockroom/pkg/audit"
	"github.com/platinummonkey/stockroom/pkg/auth"
	"github.com/platinummonkey/stockroom/pkg/entityid"
	"github.com/platinummonkey/stockroom/pkg/httputil"
	"github.com/platinummonkey/stockroom/pkg/inventory"
	"github.com/platinummonkey/stockroom/pkg/middleware"
	"github.com/platinummonkey/stockroom/pkg/observability"
	"github.com/platinummonkey/stockroom/pkg/rbac"
	"github.com/platinummonkey/stockroom/pkg/repository"
	"github.com/platinummonkey/stockroom/pkg/tenancy"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// Dependencies are the collaborators the API server is built from
type Dependencies struct {
	DB        *sql.DB
	Engine    *tenancy.Engine
	Allocator *entityid.Allocator
	Tokens    middleware.TokenValidator
	Actors    middleware.ActorResolver

	// Optional
	Audit   audit.Logger
	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Server represents our API server
type Server struct {
	router *mux.Router
	engine *tenancy.Engine
	ids    *entityid.Allocator
	audit  audit.Logger
	logger *observability.Logger

	items *repository.Repository[*inventory.Item]
	users *repository.Repository[*auth.User]
	roles *repository.Repository[*rbac.Role]
}

// NewServer creates a new API server
func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NopLogger()
	}
	if deps.Audit == nil {
		deps.Audit = audit.NewNoOpLogger()
	}

	opts := []repository.Option{
		repository.WithLogger(deps.Logger),
		repository.WithAuditLogger(deps.Audit),
	}
	if deps.Allocator != nil {
		opts = append(opts, repository.WithAllocator(deps.Allocator))
	}

	s := &Server{
		router: mux.NewRouter(),
		engine: deps.Engine,
		ids:    deps.Allocator,
		audit:  deps.Audit,
		logger: deps.Logger,
		items:  repository.New[*inventory.Item](inventory.NewItemStore(deps.DB), deps.Engine, opts...),
		users:  repository.New[*auth.User](auth.NewUserStore(deps.DB), deps.Engine, opts...),
		roles:  repository.New[*rbac.Role](rbac.NewStore(deps.DB), deps.Engine, opts...),
	}

	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(deps.Logger),
		httputil.LoggingMiddleware(deps.Logger),
		observability.HTTPMetricsMiddleware(deps.Metrics),
		httputil.MaxBytesMiddleware(maxBodyBytes),
		middleware.NewActorMiddleware(deps.Tokens, deps.Actors, deps.Logger).Handler,
	)
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes. Route names feed metrics labels
// and the authentication-route bypass.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/token", s.issueToken).Methods(http.MethodPost).Name(auth.RouteToken)

	api.HandleFunc("/items", s.listItems).Methods(http.MethodGet).Name("items.list")
	api.HandleFunc("/items", s.createItem).Methods(http.MethodPost).Name("items.create")
	api.HandleFunc("/items/{id:[0-9]+}", s.getItem).Methods(http.MethodGet).Name("items.get")
	api.HandleFunc("/items/{id:[0-9]+}", s.updateItem).Methods(http.MethodPut).Name("items.update")
	api.HandleFunc("/items/{id:[0-9]+}", s.deleteItem).Methods(http.MethodDelete).Name("items.delete")

	api.HandleFunc("/users/{id:[0-9]+}", s.deleteUser).Methods(http.MethodDelete).Name("users.delete")

	api.HandleFunc("/roles", s.listRoles).Methods(http.MethodGet).Name("roles.list")
	api.HandleFunc("/roles", s.createRole).Methods(http.MethodPost).Name("roles.create")

	api.HandleFunc("/entity-ids/{public_id}", s.lookupEntityID).Methods(http.MethodGet).Name("entity_ids.lookup")
	api.HandleFunc("/admin/entity-ids/{entity_type}/backfill", s.backfillEntityIDs).Methods(http.MethodPost).Name("entity_ids.backfill")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// NewOpsRouter serves the health probes and Prometheus metrics. It is meant
// for the separate health port.
func NewOpsRouter(checker *observability.HealthChecker, registry *prometheus.Registry) *mux.Router {
	router := mux.NewRouter()
	observability.RegisterHealthRoutes(router, checker)
	router.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet).Name("metrics")
	return router
}

// issueToken handles POST /api/v1/auth/token. Exchanging credentials for a
// token is not offered over HTTP; tokens are issued by operators.
func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	httputil.WriteNotImplemented(w, "token issuance is not available over HTTP")
}
