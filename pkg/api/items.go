package api

import (
	"context"
	"errors"
	"net/http"

	sq "github.com/Masterminds/squirrel"

	"github.com/platinummonkey/stockroom/pkg/auth"
	"github.com/platinummonkey/stockroom/pkg/entityid"
	"github.com/platinummonkey/stockroom/pkg/httputil"
	"github.com/platinummonkey/stockroom/pkg/inventory"
	"github.com/platinummonkey/stockroom/pkg/observability"
)

type itemRequest struct {
	Name           string `json:"name"`
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity"`
	LocationID     *int64 `json:"location_id,omitempty"`
	OrganizationID *int64 `json:"organization_id,omitempty"`
}

type itemResponse struct {
	*inventory.Item
	PublicID string `json:"public_id,omitempty"`
}

func (req itemRequest) validate() error {
	if req.Name == "" {
		return errors.New("name is required")
	}
	if req.Quantity < 0 {
		return errors.New("quantity must not be negative")
	}
	return nil
}

// listItems handles GET /api/v1/items
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	var filters []sq.Sqlizer
	locationID, err := httputil.ParseQueryInt64(r, "location_id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if locationID != nil {
		filters = append(filters, sq.Eq{"location_id": *locationID})
	}

	items, err := s.items.List(r.Context(), auth.FromContext(r.Context()), filters...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, s.itemResponse(r.Context(), item))
	}
	httputil.WriteSuccess(w, out)
}

// getItem handles GET /api/v1/items/{id}
func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	item, err := s.items.Get(r.Context(), auth.FromContext(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, s.itemResponse(r.Context(), item))
}

// createItem handles POST /api/v1/items
func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	item := &inventory.Item{
		OrganizationID: req.OrganizationID,
		LocationID:     req.LocationID,
		Name:           req.Name,
		SKU:            req.SKU,
		Quantity:       req.Quantity,
	}
	if err := s.items.Create(r.Context(), auth.FromContext(r.Context()), item); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, s.itemResponse(r.Context(), item))
}

// updateItem handles PUT /api/v1/items/{id}. An omitted organization_id keeps
// the current organization.
func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req itemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	item, err := s.items.Modify(r.Context(), auth.FromContext(r.Context()), id, func(item *inventory.Item) error {
		item.Name = req.Name
		item.SKU = req.SKU
		item.Quantity = req.Quantity
		item.LocationID = req.LocationID
		if req.OrganizationID != nil {
			item.SetOrganizationID(*req.OrganizationID)
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, s.itemResponse(r.Context(), item))
}

// deleteItem handles DELETE /api/v1/items/{id}
func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.items.Delete(r.Context(), auth.FromContext(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// itemResponse attaches the public ID when one has been allocated
func (s *Server) itemResponse(ctx context.Context, item *inventory.Item) itemResponse {
	resp := itemResponse{Item: item}
	if s.ids == nil {
		return resp
	}
	publicID, err := s.ids.GetPublicID(ctx, item.ID, item.EntityType(), item.OrganizationID)
	switch {
	case err == nil:
		resp.PublicID = publicID
	case !errors.Is(err, entityid.ErrNotFound):
		observability.FromContext(ctx, s.logger).WithError(err).Warn("failed to read public id")
	}
	return resp
}
