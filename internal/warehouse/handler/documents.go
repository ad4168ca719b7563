package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/medflow-warehouse/internal/warehouse/service"
	"github.com/medflow/medflow-warehouse/pkg/httputil"
)

// Receipt handlers

func (h *WarehouseHandler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req service.CreateReceiptRequest
	if err := decode(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	doc, err := h.service.CreateReceipt(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, doc)
}

func (h *WarehouseHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.GetReceipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, doc)
}

func (h *WarehouseHandler) SubmitReceipt(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.SubmitReceipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, doc)
}

func (h *WarehouseHandler) ApproveReceipt(w http.ResponseWriter, r *http.Request) {
	h.respondApproval(w, r, h.service.ApproveReceipt)
}

func (h *WarehouseHandler) CancelReceipt(w http.ResponseWriter, r *http.Request) {
	var req service.ReasonRequest
	if err := decode(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	doc, err := h.service.CancelReceipt(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, doc)
}

func (h *WarehouseHandler) UnapproveReceipt(w http.ResponseWriter, r *http.Request) {
	h.respondReversal(w, r, h.service.UnapproveReceipt)
}

// Issuance handlers

func (h *WarehouseHandler) CreateIssuance(w http.ResponseWriter, r *http.Request) {
	var req service.CreateIssuanceRequest
	if err := decode(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	doc, err := h.service.CreateIssuance(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, doc)
}

func (h *WarehouseHandler) GetIssuance(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.GetIssuance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, doc)
}

func (h *WarehouseHandler) SubmitIssuance(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.SubmitIssuance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, doc)
}

func (h *WarehouseHandler) ApproveIssuance(w http.ResponseWriter, r *http.Request) {
	h.respondApproval(w, r, h.service.ApproveIssuance)
}

func (h *WarehouseHandler) DeliverIssuance(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.DeliverIssuance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, doc)
}

func (h *WarehouseHandler) CancelIssuance(w http.ResponseWriter, r *http.Request) {
	var req service.ReasonRequest
	if err := decode(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	doc, err := h.service.CancelIssuance(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, doc)
}

func (h *WarehouseHandler) UnapproveIssuance(w http.ResponseWriter, r *http.Request) {
	h.respondReversal(w, r, h.service.UnapproveIssuance)
}

// DocumentNotes returns the cancel and unapprove history of a document.
func (h *WarehouseHandler) DocumentNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.DocumentNotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, notes)
}

type approveFunc func(ctx context.Context, id string) (*service.ApprovalResult, error)

type reverseFunc func(ctx context.Context, id string, req service.ReasonRequest) (*service.ApprovalResult, error)

func (h *WarehouseHandler) respondApproval(w http.ResponseWriter, r *http.Request, approve approveFunc) {
	result, err := approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

func (h *WarehouseHandler) respondReversal(w http.ResponseWriter, r *http.Request, reverse reverseFunc) {
	var req service.ReasonRequest
	if err := decode(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := reverse(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().
		Str("document_code", result.DocumentCode).
		Str("request_id", httputil.GetRequestID(r.Context())).
		Msg("document unapproved")
	httputil.JSON(w, http.StatusOK, result)
}
