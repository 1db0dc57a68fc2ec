package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/stockroom/pkg/entityid"
	"github.com/platinummonkey/stockroom/pkg/httputil"
	"github.com/platinummonkey/stockroom/pkg/observability"
	"github.com/platinummonkey/stockroom/pkg/rbac"
	"github.com/platinummonkey/stockroom/pkg/repository"
	"github.com/platinummonkey/stockroom/pkg/tenancy"
)

// writeError maps domain errors onto HTTP responses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var forbidden *tenancy.ForbiddenError
	switch {
	case errors.As(err, &forbidden):
		httputil.WriteForbidden(w, string(forbidden.Reason), tenancy.Message(forbidden.Reason))
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, entityid.ErrNotFound),
		errors.Is(err, entityid.ErrUnknownEntityType),
		errors.Is(err, rbac.ErrRoleNotFound):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, entityid.ErrInvalidPublicID),
		errors.Is(err, rbac.ErrInvalidRole),
		errors.Is(err, rbac.ErrUnknownPermission),
		errors.Is(err, rbac.ErrReservedSlug):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, rbac.ErrSystemRoleImmutable):
		httputil.WriteConflict(w, err.Error())
	default:
		observability.FromContext(r.Context(), s.logger).WithError(err).Error("request failed")
		httputil.WriteInternalError(w)
	}
}
