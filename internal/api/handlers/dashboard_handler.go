package handlers

import (
	"context"
	"net/http"

	"github.com/finsync/engine/internal/services"
	"github.com/go-chi/chi/v5"
)

type DashboardHandler struct {
	dashboard services.DashboardService
}

func NewDashboardHandler(dashboard services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

func (h *DashboardHandler) serve(w http.ResponseWriter, r *http.Request, get func(context.Context, string) (any, error)) {
	userID := chi.URLParam(r, "userId")
	if err := authorizeUser(r, userID); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := get(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, id string) (any, error) { return h.dashboard.Stats(ctx, id) })
}

func (h *DashboardHandler) Compliance(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, id string) (any, error) { return h.dashboard.ComplianceChart(ctx, id) })
}

func (h *DashboardHandler) GstTrends(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, id string) (any, error) { return h.dashboard.GstTrends(ctx, id) })
}
