// Package api is a thin HTTP client for the FinSync auth and records endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finsync/engine/internal/api/types"
	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/internal/services"
	appErr "github.com/finsync/engine/pkg/errors"
)

type Client struct {
	base string
	http *http.Client
}

// New returns a client for baseURL. A nil hc gets a 30s timeout client.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) Register(ctx context.Context, req types.RegisterRequest) (*services.AuthResult, error) {
	var out services.AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password, sessionID string) (*services.AuthResult, error) {
	var out services.AuthResult
	req := types.LoginRequest{Email: email, Password: password, SessionID: sessionID}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Validate(ctx context.Context, userID, token string) (*models.User, error) {
	var out types.UserResponse
	req := types.ValidateRequest{UserID: userID, SessionToken: token}
	if err := c.do(ctx, http.MethodPost, "/api/auth/validate", "", req, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, appErr.Unauthorized("Invalid session")
	}
	return out.User, nil
}

func (c *Client) Logout(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", "", types.LogoutRequest{UserID: userID}, nil)
}

func (c *Client) Invoices(ctx context.Context, userID, token string) ([]models.Invoice, error) {
	out := make([]models.Invoice, 0)
	if err := c.do(ctx, http.MethodGet, "/api/invoices/"+url.PathEscape(userID), token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Stats(ctx context.Context, userID, token string) (*services.DashboardStats, error) {
	var out services.DashboardStats
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/stats/"+url.PathEscape(userID), token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "encode request")
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return appErr.Dependency(err, "server unreachable", true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return appErr.Dependency(err, "malformed response", false)
	}
	return nil
}

// decodeError rebuilds the server's AppError from its JSON body.
func decodeError(resp *http.Response) error {
	var eb types.ErrorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &eb); err != nil || eb.Message == "" {
		return appErr.Dependency(fmt.Errorf("status %d", resp.StatusCode), "unexpected server response", resp.StatusCode >= 500)
	}
	code := appErr.Code(eb.Code)
	if code == "" {
		code = codeForStatus(resp.StatusCode)
	}
	e := appErr.New(code, eb.Message)
	if eb.Retryable != nil {
		e = e.WithRetryable(*eb.Retryable)
	}
	if len(eb.ValidationErrors) > 0 {
		e = e.WithMeta("validationErrors", eb.ValidationErrors)
	}
	return e
}

func codeForStatus(status int) appErr.Code {
	switch status {
	case http.StatusBadRequest:
		return appErr.CodeInvalid
	case http.StatusUnauthorized:
		return appErr.CodeUnauthorized
	case http.StatusForbidden:
		return appErr.CodeForbidden
	case http.StatusNotFound:
		return appErr.CodeNotFound
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return appErr.CodeDependency
	case http.StatusGatewayTimeout:
		return appErr.CodeDeadline
	default:
		return appErr.CodeInternal
	}
}
