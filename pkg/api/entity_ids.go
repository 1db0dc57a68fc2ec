package api

import (
	"net/http"

	"github.com/platinummonkey/stockroom/pkg/auth"
	"github.com/platinummonkey/stockroom/pkg/entityid"
	"github.com/platinummonkey/stockroom/pkg/httputil"
	"github.com/platinummonkey/stockroom/pkg/rbac"
)

type entityIDResponse struct {
	PublicID       string `json:"public_id"`
	EntityType     string `json:"entity_type"`
	InternalID     int64  `json:"internal_id"`
	OrganizationID int64  `json:"organization_id"`
}

// lookupEntityID handles GET /api/v1/entity-ids/{public_id}.
//
// The ID is resolved inside the actor's organization. Super-admins pick the
// organization with ?organization_id=; global types ignore it.
func (s *Server) lookupEntityID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := auth.FromContext(ctx)

	publicID, ok := httputil.ParsePathStringOrError(w, r, "public_id")
	if !ok {
		return
	}
	prefix, _, err := entityid.Parse(publicID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	et, err := s.ids.Registry().ByPrefix(prefix)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Authorize(ctx, ac, rbac.ActionView, et.Table, nil); err != nil {
		s.writeError(w, r, err)
		return
	}

	var orgID *int64
	if actor := ac.CurrentActor(); actor != nil {
		orgID = actor.OrganizationID
	}
	if ac.IsSuperAdmin() {
		requested, err := httputil.ParseQueryInt64(r, "organization_id")
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		orgID = requested
	}
	if et.Scope == entityid.ScopeGlobal {
		orgID = nil
	}

	id, err := s.ids.Lookup(ctx, publicID, orgID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, entityIDResponse{
		PublicID:       id.PublicID(),
		EntityType:     id.EntityType,
		InternalID:     id.InternalID,
		OrganizationID: id.OrganizationID,
	})
}

// backfillEntityIDs handles POST /api/v1/admin/entity-ids/{entity_type}/backfill
func (s *Server) backfillEntityIDs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := auth.FromContext(ctx)

	entityType, ok := httputil.ParsePathStringOrError(w, r, "entity_type")
	if !ok {
		return
	}
	if err := s.engine.Authorize(ctx, ac, rbac.ActionBackfill, "entity_ids", nil); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.ids.BackfillMissingPublicIDs(ctx, entityType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}
