package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/platinummonkey/stockroom/pkg/audit"
	"github.com/platinummonkey/stockroom/pkg/auth"
	"github.com/platinummonkey/stockroom/pkg/entityid"
	"github.com/platinummonkey/stockroom/pkg/httputil"
	"github.com/platinummonkey/stockroom/pkg/observability"
	"github.com/platinummonkey/stockroom/pkg/rbac"
)

type roleRequest struct {
	Slug                 string            `json:"slug"`
	Title                string            `json:"title"`
	ForbiddenPermissions []rbac.Permission `json:"forbidden_permissions"`
	OrganizationID       *int64            `json:"organization_id,omitempty"`
}

type roleResponse struct {
	*rbac.Role
	PublicID string `json:"public_id,omitempty"`
}

// listRoles handles GET /api/v1/roles. Members of an organization see the
// system roles and their organization's custom roles.
func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := auth.FromContext(ctx)
	if err := s.engine.Authorize(ctx, ac, rbac.ActionView, "roles", nil); err != nil {
		s.writeError(w, r, err)
		return
	}

	var filters []sq.Sqlizer
	if actor := ac.CurrentActor(); actor != nil && actor.OrganizationID != nil {
		filters = append(filters, sq.Or{
			sq.Eq{"organization_id": *actor.OrganizationID},
			sq.Eq{"organization_id": nil},
		})
	}

	roles, err := s.roles.List(ctx, ac, filters...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, s.roleResponse(ctx, role))
	}
	httputil.WriteSuccess(w, out)
}

// createRole handles POST /api/v1/roles. The manager-forbidden keys are
// always added to the requested forbidden set.
func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := auth.FromContext(ctx)
	actor := ac.CurrentActor()

	var req roleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Slug = strings.TrimSpace(req.Slug)
	req.Title = strings.TrimSpace(req.Title)
	if !httputil.RequireNonEmpty(w, req.Slug, "slug") || !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}

	orgID := req.OrganizationID
	if orgID == nil && actor != nil {
		orgID = actor.OrganizationID
	}
	if orgID == nil {
		httputil.WriteBadRequest(w, "organization_id is required")
		return
	}

	role, err := rbac.NewCustomRole(*orgID, req.Slug, req.Title, req.ForbiddenPermissions)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if actor != nil {
		role.CreatedBy = &actor.ID
	}

	if err := s.roles.Create(ctx, ac, role); err != nil {
		s.writeError(w, r, err)
		return
	}

	event := audit.NewEvent(ctx, audit.EventTypeAdminRoleCreate, audit.EventStatusSuccess)
	event.UserID = role.CreatedBy
	event.OrganizationID = role.OrganizationID
	event.Resource = "roles"
	event.ResourceID = strconv.FormatInt(role.ID, 10)
	event.Route = ac.Route()
	event.Metadata = map[string]interface{}{
		"slug":      role.Slug,
		"forbidden": role.Forbidden.Slice(),
	}
	if err := s.audit.Log(ctx, event); err != nil {
		observability.FromContext(ctx, s.logger).WithError(err).Error("failed to write audit event")
	}

	httputil.WriteCreated(w, s.roleResponse(ctx, role))
}

func (s *Server) roleResponse(ctx context.Context, role *rbac.Role) roleResponse {
	resp := roleResponse{Role: role}
	if s.ids == nil || role.OrganizationID == nil {
		return resp
	}
	publicID, err := s.ids.GetPublicID(ctx, role.ID, role.EntityType(), role.OrganizationID)
	switch {
	case err == nil:
		resp.PublicID = publicID
	case !errors.Is(err, entityid.ErrNotFound):
		observability.FromContext(ctx, s.logger).WithError(err).Warn("failed to read public id")
	}
	return resp
}
