package handlers

import (
	"mime"
	"net/http"

	"github.com/finsync/engine/internal/api/types"
	"github.com/finsync/engine/internal/services"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/go-chi/chi/v5"
)

type ReportsHandler struct {
	reports services.ReportService
}

func NewReportsHandler(reports services.ReportService) *ReportsHandler {
	return &ReportsHandler{reports: reports}
}

// DownloadExcel streams the consolidated workbook as an attachment.
func (h *ReportsHandler) DownloadExcel(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, r, appErr.Invalid("User ID is required"))
		return
	}
	if err := authorizeUser(r, userID); err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := h.reports.Download(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rep.Name}))
	http.ServeFile(w, r, rep.Path)
}

func (h *ReportsHandler) UploadToGovernment(w http.ResponseWriter, r *http.Request) {
	var req types.GovernmentUploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := authorizeUser(r, req.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.reports.SubmitToPortal(r.Context(), req.UserID, req.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Upload failed"
		}
		writeJSON(w, http.StatusBadRequest, types.ErrorBody{
			Message:          msg,
			Code:             string(appErr.CodeInvalid),
			ValidationErrors: res.ValidationErrors,
			Details:          "Please check file format and content",
		})
		return
	}
	msg := res.Message
	if msg == "" {
		msg = "Successfully uploaded to Government Portal"
	}
	writeJSON(w, http.StatusOK, types.GovernmentUploadResponse{
		Success:         true,
		Message:         msg,
		ReferenceNumber: res.ReferenceNumber,
		UploadTimestamp: res.Timestamp,
		Status:          res.Status,
		Warnings:        res.Warnings,
	})
}

func (h *ReportsHandler) GovernmentStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.reports.PortalStatus(r.Context(), chi.URLParam(r, "referenceNumber"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
