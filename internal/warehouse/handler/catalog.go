package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/internal/warehouse/service"
	"github.com/medflow/medflow-warehouse/pkg/httputil"
)

// CreateItem registers an item definition. Quantities start at zero and
// only change through documents.
func (h *WarehouseHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var def domain.ItemDefinition
	if err := decode(r, &def); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.UpsertItemDefinition(r.Context(), def)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, item)
}

func (h *WarehouseHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, items)
}

func (h *WarehouseHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, item)
}

func (h *WarehouseHandler) UpsertLocation(w http.ResponseWriter, r *http.Request) {
	var req service.LocationRequest
	if err := decode(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	loc, err := h.service.UpsertLocation(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, loc)
}

func (h *WarehouseHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.service.GetLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, loc)
}
