package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finsync/engine/internal/api/types"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req types.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid credentials","code":"unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":"u1","email":"a@b.com","name":"A"},"session":{"id":"` + req.SessionID + `","token":"tok"}}`))
	})
	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Validation failed","code":"invalid","validationErrors":["password is required"]}`))
	})
	mux.HandleFunc("POST /api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		var req types.ValidateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.SessionToken != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid session","code":"unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":"` + req.UserID + `","email":"a@b.com","name":"A"}}`))
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"message":"Logged out successfully"}`))
	})
	mux.HandleFunc("GET /api/invoices/{userId}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"Forbidden"}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":"i1","userId":"` + r.PathValue("userId") + `","invoiceNumber":"INV-1"}]`))
	})
	mux.HandleFunc("GET /api/dashboard/stats/{userId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientLoginAndValidate(t *testing.T) {
	c := New(fakeServer(t).URL+"/", nil)
	ctx := context.Background()

	res, err := c.Login(ctx, "a@b.com", "secret", "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)
	assert.Equal(t, "sid-1", res.Session.ID)
	assert.Equal(t, "tok", res.Session.Token)

	u, err := c.Validate(ctx, "u1", "tok")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)

	require.NoError(t, c.Logout(ctx, "u1"))
}

func TestClientDecodesErrors(t *testing.T) {
	c := New(fakeServer(t).URL, nil)
	ctx := context.Background()

	_, err := c.Login(ctx, "a@b.com", "wrong", "sid")
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))
	ae, _ := appErr.As(err)
	assert.Equal(t, "Invalid credentials", ae.Message)

	_, err = c.Register(ctx, types.RegisterRequest{Email: "a@b.com"})
	ae, ok := appErr.As(err)
	require.True(t, ok)
	assert.Equal(t, appErr.CodeInvalid, ae.Code)
	assert.Equal(t, []string{"password is required"}, ae.Meta["validationErrors"])

	_, err = c.Validate(ctx, "u1", "stale")
	assert.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))

	// no code in the body falls back to the status
	_, err = c.Invoices(ctx, "u1", "")
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))

	_, err = c.Stats(ctx, "u1", "tok")
	assert.True(t, appErr.IsCode(err, appErr.CodeDependency))
	retry, known := appErr.Retryable(err)
	assert.True(t, known)
	assert.True(t, retry)
}

func TestClientInvoicesSendsBearer(t *testing.T) {
	c := New(fakeServer(t).URL, nil)
	list, err := c.Invoices(context.Background(), "u1", "tok")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "INV-1", list[0].InvoiceNumber)
}

func TestClientUnreachableIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, nil).Validate(context.Background(), "u1", "tok")
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeDependency))
	retry, _ := appErr.Retryable(err)
	assert.True(t, retry)
}
