package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/finsync/engine/internal/services"
	appErr "github.com/finsync/engine/pkg/errors"
)

const (
	maxUploadFiles = 10
	// Parts beyond this stay on disk while the form is parsed.
	multipartMemory = 32 << 20
)

type ExtractHandler struct {
	extraction services.ExtractionService
}

func NewExtractHandler(extraction services.ExtractionService) *ExtractHandler {
	return &ExtractHandler{extraction: extraction}
}

// Extract accepts a multipart form with one or more "files" parts and a "userId" field.
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadFiles*services.MaxUploadBytes+maxJSONBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, appErr.Invalid("Upload too large"))
			return
		}
		writeError(w, r, appErr.Invalid("Expected a multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, r, appErr.Invalid("No files uploaded"))
		return
	}
	if len(headers) > maxUploadFiles {
		writeError(w, r, appErr.Invalid("Too many files in one upload"))
		return
	}
	userID := r.FormValue("userId")
	if userID == "" {
		writeError(w, r, appErr.Invalid("User ID is required"))
		return
	}
	if err := authorizeUser(r, userID); err != nil {
		writeError(w, r, err)
		return
	}

	files := make([]services.IncomingFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, r, appErr.Wrap(err, appErr.CodeInternal, "open upload"))
			return
		}
		defer func(f multipart.File) { _ = f.Close() }(f)
		files = append(files, services.IncomingFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	res, err := h.extraction.Ingest(r.Context(), userID, files)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}
