package types

import (
	"net/http"

	appErr "github.com/finsync/engine/pkg/errors"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Message          string   `json:"message"`
	Code             string   `json:"code"`
	Retryable        *bool    `json:"retryable,omitempty"`
	ValidationErrors []string `json:"validationErrors,omitempty"`
	Details          string   `json:"details,omitempty"`
}

const genericMessage = "Internal server error"

// FromError maps err onto a status and a body that is safe to show clients.
// Internal failures never leak their cause.
func FromError(err error) (int, ErrorBody) {
	ae, ok := appErr.As(err)
	if !ok {
		return http.StatusInternalServerError, ErrorBody{Message: genericMessage, Code: string(appErr.CodeInternal)}
	}
	status := appErr.HTTPStatus(ae.Code)
	body := ErrorBody{Message: ae.Message, Code: string(ae.Code)}
	if status >= 500 && ae.Code == appErr.CodeInternal {
		body.Message = genericMessage
	}
	if retry, known := appErr.Retryable(err); known {
		body.Retryable = &retry
	}
	if v, ok := ae.Meta["validationErrors"].([]string); ok {
		body.ValidationErrors = v
	}
	if v, ok := ae.Meta["details"].(string); ok {
		body.Details = v
	}
	return status, body
}
