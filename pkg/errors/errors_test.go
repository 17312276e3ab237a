package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCodeThroughWrapping(t *testing.T) {
	base := NotFound("user not found")
	wrapped := fmt.Errorf("load profile: %w", base)

	assert.True(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(wrapped, CodeConflict))
	assert.False(t, IsCode(fmt.Errorf("plain"), CodeNotFound))
}

func TestRetryableHint(t *testing.T) {
	err := Dependency(fmt.Errorf("exit status 1"), "extractor failed", false)
	retry, known := Retryable(err)
	assert.True(t, known)
	assert.False(t, retry)

	timeout := New(CodeDeadline, "extractor timed out").WithRetryable(true)
	retry, known = Retryable(fmt.Errorf("wrapped: %w", timeout))
	assert.True(t, known)
	assert.True(t, retry)

	_, known = Retryable(Invalid("bad email"))
	assert.False(t, known)
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalid:      http.StatusBadRequest,
		CodeConflict:     http.StatusBadRequest,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeForbidden:    http.StatusForbidden,
		CodeNotFound:     http.StatusNotFound,
		CodeDependency:   http.StatusBadGateway,
		CodeDeadline:     http.StatusGatewayTimeout,
		CodeInternal:     http.StatusInternalServerError,
		CodeUnknown:      http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), string(code))
	}
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "invalid: bad", Invalid("bad").Error())
	assert.Equal(t, "internal: save failed: boom", Wrap(fmt.Errorf("boom"), CodeInternal, "save failed").Error())
	var nilErr *AppError
	assert.Equal(t, "<nil>", nilErr.Error())
}
