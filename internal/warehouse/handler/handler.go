// Package handler exposes the warehouse service over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/medflow-warehouse/internal/warehouse/service"
	"github.com/medflow/medflow-warehouse/pkg/httputil"
	"github.com/medflow/medflow-warehouse/pkg/logger"
	"github.com/medflow/medflow-warehouse/pkg/permissions"
)

// WarehouseHandler handles the /api/v1/warehouse endpoints
type WarehouseHandler struct {
	service        *service.WarehouseService
	nearExpiryDays int
	logger         *logger.Logger
}

// NewWarehouseHandler creates a new warehouse handler
// nearExpiryDays is the horizon used when ?days is omitted.
func NewWarehouseHandler(svc *service.WarehouseService, nearExpiryDays int, log *logger.Logger) *WarehouseHandler {
	return &WarehouseHandler{
		service:        svc,
		nearExpiryDays: nearExpiryDays,
		logger:         log.WithComponent("warehouse-handler"),
	}
}

// Routes mounts the warehouse endpoints. The router must already carry the
// authentication middleware.
func (h *WarehouseHandler) Routes(r chi.Router) {
	read := httputil.RequirePermission(permissions.WarehouseRead)

	r.Route("/items", func(r chi.Router) {
		r.With(httputil.RequirePermission(permissions.CatalogWrite)).Post("/", h.CreateItem)
		r.With(read).Get("/", h.ListItems)
		r.With(read).Get("/low-stock", h.LowStock)
		r.With(read).Get("/{id}", h.GetItem)
		r.With(read).Get("/{id}/lots", h.ListLots)
		r.With(read).Get("/{id}/stock", h.ListStock)
		r.With(read).Get("/{id}/movements", h.ListMovements)
		r.With(read).Get("/{id}/reconcile", h.Reconcile)
	})

	r.Route("/lots", func(r chi.Router) {
		r.With(read).Get("/near-expiry", h.NearExpiry)
		r.With(httputil.RequirePermission(permissions.StockAdjust)).Post("/refresh-status", h.RefreshLotStatuses)
	})

	r.Route("/locations", func(r chi.Router) {
		r.With(httputil.RequirePermission(permissions.CatalogWrite)).Post("/", h.UpsertLocation)
		r.With(read).Get("/{id}", h.GetLocation)
	})

	r.Route("/receipts", func(r chi.Router) {
		write := httputil.RequirePermission(permissions.ReceiptWrite)
		r.With(write).Post("/", h.CreateReceipt)
		r.With(read).Get("/{id}", h.GetReceipt)
		r.With(read).Get("/{id}/notes", h.DocumentNotes)
		r.With(write).Post("/{id}/submit", h.SubmitReceipt)
		r.With(httputil.RequirePermission(permissions.ReceiptApprove)).Post("/{id}/approve", h.ApproveReceipt)
		r.With(write).Post("/{id}/cancel", h.CancelReceipt)
		// the service reports a disabled unapprove before checking the permission
		r.With(write).Post("/{id}/unapprove", h.UnapproveReceipt)
	})

	r.Route("/issuances", func(r chi.Router) {
		write := httputil.RequirePermission(permissions.IssuanceWrite)
		r.With(write).Post("/", h.CreateIssuance)
		r.With(read).Get("/{id}", h.GetIssuance)
		r.With(read).Get("/{id}/notes", h.DocumentNotes)
		r.With(write).Post("/{id}/submit", h.SubmitIssuance)
		r.With(httputil.RequirePermission(permissions.IssuanceApprove)).Post("/{id}/approve", h.ApproveIssuance)
		r.With(write).Post("/{id}/deliver", h.DeliverIssuance)
		r.With(write).Post("/{id}/cancel", h.CancelIssuance)
		r.With(httputil.RequirePermission(permissions.IssuanceUnapprove)).Post("/{id}/unapprove", h.UnapproveIssuance)
	})

	r.With(httputil.RequirePermission(permissions.StockAdjust)).Post("/adjustments", h.AdjustStock)
}

// decode reads and validates a JSON body.
func decode(r *http.Request, v interface{}) error {
	if err := httputil.DecodeJSON(r, v); err != nil {
		return err
	}
	return httputil.Validate(v)
}
