package handlers

import (
	"net/http"

	"github.com/finsync/engine/internal/api/types"
	"github.com/finsync/engine/internal/services"
)

type AuthHandler struct {
	auth services.AuthService
}

func NewAuthHandler(auth services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.auth.Register(r.Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		Company:   req.Company,
		Phone:     req.Phone,
		SessionID: req.SessionID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password, req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req types.ValidateRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.auth.ValidateSession(r.Context(), req.UserID, req.SessionToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.UserResponse{User: u})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req types.LogoutRequest
	// A malformed body still logs out.
	_ = decodeOptionalJSON(w, r, &req)
	if err := h.auth.Logout(r.Context(), req.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{Success: true, Message: "Logged out successfully"})
}
