package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/finsync/engine/internal/api/middleware"
	"github.com/finsync/engine/internal/api/types"
	"github.com/finsync/engine/internal/api/validators"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/finsync/engine/pkg/logger"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

var validate = validators.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates err into the shared error body. Server-side failures
// are logged with the request id; their cause never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := types.FromError(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a size-limited JSON body into dst and validates it when it
// carries validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, false)
}

// decodeOptionalJSON is decodeJSON for endpoints where an empty body means
// all fields are absent.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF) && optional:
			return nil
		case errors.Is(err, io.EOF):
			return appErr.Invalid("Request body is required")
		case errors.As(err, &tooBig):
			return appErr.Invalid("Request body too large")
		default:
			return appErr.Invalid("Invalid JSON body")
		}
	}
	if err := validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		msgs := validators.Messages(err)
		return appErr.Invalid(msgs[0]).WithMeta("validationErrors", msgs)
	}
	return nil
}

// authorizeUser rejects a request whose session names a different user than
// the one it acts on. Anonymous requests pass; Session decides whether they may exist.
func authorizeUser(r *http.Request, userID string) error {
	sessionUser := middleware.GetUserID(r.Context())
	if sessionUser == "" || sessionUser == userID {
		return nil
	}
	return appErr.New(appErr.CodeForbidden, "Not allowed to access another user's data")
}
