package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/finsync/engine/internal/api/types"
	"github.com/finsync/engine/internal/services"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/go-chi/chi/v5"
)

type UsersHandler struct {
	users services.UserService
}

func NewUsersHandler(users services.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := authorizeUser(r, id); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.UserResponse{User: u})
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := authorizeUser(r, id); err != nil {
		writeError(w, r, err)
		return
	}
	var req types.ProfileUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.UpdateProfile(r.Context(), id, services.ProfileUpdate{
		Name:    req.Name,
		Email:   req.Email,
		Company: req.Company,
		Phone:   req.Phone,
		Avatar:  req.Avatar,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.UserResponse{User: u})
}

// Avatar accepts a multipart form with an "avatar" image and a "userId" field.
func (h *UsersHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.AvatarMaxBytes+maxJSONBody)
	if err := r.ParseMultipartForm(services.AvatarMaxBytes + maxJSONBody); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, appErr.Invalid("Avatar must be 5MB or smaller"))
			return
		}
		writeError(w, r, appErr.Invalid("Expected a multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	userID := r.FormValue("userId")
	if userID == "" {
		writeError(w, r, appErr.Invalid("User ID is required"))
		return
	}
	if err := authorizeUser(r, userID); err != nil {
		writeError(w, r, err)
		return
	}
	f, _, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, r, appErr.Invalid("No file uploaded"))
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, services.AvatarMaxBytes+1))
	if err != nil {
		writeError(w, r, appErr.Wrap(err, appErr.CodeInternal, "read avatar"))
		return
	}

	uri, err := h.users.SetAvatar(r.Context(), userID, raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.AvatarResponse{Message: "Avatar uploaded successfully", AvatarURL: uri})
}
