package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/medflow-warehouse/internal/warehouse/service"
	"github.com/medflow/medflow-warehouse/pkg/httputil"
)

// ListLots returns the lots of an item in receiving order.
func (h *WarehouseHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.service.ListLots(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lots)
}

// ListStock returns the per-location holdings of an item.
func (h *WarehouseHandler) ListStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListLocationStock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rows)
}

// ListMovements returns the ledger of an item, optionally bounded by
// ?from and ?to.
func (h *WarehouseHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	from, err := httputil.QueryTime(r, "from")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	to, err := httputil.QueryTime(r, "to")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	movements, err := h.service.QueryStockMovements(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, movements)
}

func (h *WarehouseHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.ReconcileItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rec)
}

func (h *WarehouseHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.QueryLowStockItems(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, items)
}

// NearExpiry lists lots in stock that expire within ?days (default: the
// configured window).
func (h *WarehouseHandler) NearExpiry(w http.ResponseWriter, r *http.Request) {
	days, err := httputil.QueryInt(r, "days", h.nearExpiryDays)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lots, err := h.service.QueryLotsNearExpiry(r.Context(), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lots)
}

// RefreshLotStatuses runs the lot status pass on demand.
func (h *WarehouseHandler) RefreshLotStatuses(w http.ResponseWriter, r *http.Request) {
	changed, err := h.service.RefreshLotStatuses(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]int{"changed": changed})
}

func (h *WarehouseHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req service.AdjustStockRequest
	if err := decode(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	movement, err := h.service.AdjustStock(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().
		Str("item_id", req.ItemID).
		Int64("delta", req.Delta).
		Str("request_id", httputil.GetRequestID(r.Context())).
		Msg("stock adjusted")
	httputil.Created(w, movement)
}
