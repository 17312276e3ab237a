package handlers

import (
	"context"
	"net/http"

	"github.com/finsync/engine/internal/api/middleware"
	"github.com/finsync/engine/internal/api/types"
	"github.com/finsync/engine/internal/services"
	"github.com/go-chi/chi/v5"
)

type RecordsHandler struct {
	records services.RecordsService
}

func NewRecordsHandler(records services.RecordsService) *RecordsHandler {
	return &RecordsHandler{records: records}
}

// listFor serves GET .../{userId} for a per-user collection.
func listFor[T any](list func(ctx context.Context, userID string) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")
		if err := authorizeUser(r, userID); err != nil {
			writeError(w, r, err)
			return
		}
		items, err := list(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func (h *RecordsHandler) ListGstReturns(w http.ResponseWriter, r *http.Request) {
	listFor(h.records.ListGstReturns)(w, r)
}

func (h *RecordsHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	listFor(h.records.ListInvoices)(w, r)
}

func (h *RecordsHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	listFor(h.records.ListFiles)(w, r)
}

func (h *RecordsHandler) ListDownloads(w http.ResponseWriter, r *http.Request) {
	listFor(h.records.ListDownloads)(w, r)
}

func (h *RecordsHandler) CreateGstReturn(w http.ResponseWriter, r *http.Request) {
	var req types.GstReturnCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := authorizeUser(r, req.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	ret, err := h.records.CreateGstReturn(r.Context(), services.GstReturnInput{
		UserID:     req.UserID,
		ReturnType: req.ReturnType,
		Period:     req.Period,
		Status:     req.Status,
		TotalTax:   req.TotalTax,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ret)
}

func (h *RecordsHandler) UpdateGstReturn(w http.ResponseWriter, r *http.Request) {
	var req types.GstReturnPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ret, err := h.records.UpdateGstReturn(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()), services.GstReturnPatch{
		ReturnType: req.ReturnType,
		Period:     req.Period,
		Status:     req.Status,
		TotalTax:   req.TotalTax,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ret)
}

func (h *RecordsHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req types.InvoiceCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := authorizeUser(r, req.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.records.CreateInvoice(r.Context(), services.InvoiceInput{
		UserID:        req.UserID,
		InvoiceNumber: req.InvoiceNumber,
		Gstin:         req.Gstin,
		BuyerName:     req.BuyerName,
		Amount:        req.Amount,
		TaxAmount:     req.TaxAmount,
		HsnCode:       req.HsnCode,
		Status:        req.Status,
		FileName:      req.FileName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *RecordsHandler) DeleteDownload(w http.ResponseWriter, r *http.Request) {
	err := h.records.DeleteDownload(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{Success: true, Message: "Report deleted successfully"})
}
