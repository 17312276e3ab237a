package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/finsync/engine/internal/api"
	"github.com/finsync/engine/internal/api/handlers"
	"github.com/finsync/engine/internal/portal"
	"github.com/finsync/engine/internal/repository"
	"github.com/finsync/engine/internal/schema"
	"github.com/finsync/engine/internal/services"
	"github.com/finsync/engine/pkg/database"
	"github.com/finsync/engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.UseNop()
	os.Exit(m.Run())
}

// newServer runs the auth, records and dashboard routes over sqlite.
func newServer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := database.Open(ctx, database.Options{Driver: database.DriverSQLite, DSN: filepath.Join(dir, "cli.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	caps, err := schema.Gate(ctx, db, database.DriverSQLite, true)
	require.NoError(t, err)

	users := repository.NewUserRepository(db, caps.UserPhone)
	returns := repository.NewGstReturnRepository(db)
	invoices := repository.NewInvoiceRepository(db)
	files := repository.NewUploadedFileRepository(db)
	downloads := repository.NewDownloadHistoryRepository(db)
	tokens := services.NewTokenIssuer([]byte("cli-test"), time.Hour)

	srv := httptest.NewServer(api.NewRouter(api.Dependencies{
		Tokens:              tokens,
		RequireSessionToken: true,
		HealthHandler:       handlers.NewHealthHandler(db, nil),
		AuthHandler:         handlers.NewAuthHandler(services.NewAuthService(users, tokens)),
		UsersHandler:        handlers.NewUsersHandler(services.NewUserService(users)),
		RecordsHandler:      handlers.NewRecordsHandler(services.NewRecordsService(users, returns, invoices, files, downloads)),
		DashboardHandler:    handlers.NewDashboardHandler(services.NewDashboardService(returns, invoices, files)),
		ExtractHandler: handlers.NewExtractHandler(services.NewExtractionService(
			users, files, invoices, nil, nil, filepath.Join(dir, "uploads"))),
		ReportsHandler: handlers.NewReportsHandler(services.NewReportService(
			invoices, downloads, portal.NewDisabled(), filepath.Join(dir, "report.xlsx"))),
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

type runner struct {
	server string
	state  string
}

func (r runner) run(password string, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(""), &out, &errOut)
	a.readPassword = func() (string, error) { return password, nil }
	a.initLogger = func() error { return nil }
	full := append([]string{"--server", r.server, "--state", r.state}, args...)
	err := a.execute(context.Background(), full)
	return out.String(), errOut.String(), err
}

func TestCLISessionLifecycle(t *testing.T) {
	r := runner{server: newServer(t), state: filepath.Join(t.TempDir(), "session.json")}

	out, _, err := r.run("pw-x", "register", "--email", "x@example.com", "--name", "X", "--company", "Acme")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered and signed in as X")

	// A new process restores the session from disk.
	out, _, err = r.run("", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "X <x@example.com>")
	assert.Contains(t, out, "company=Acme")

	_, _, err = r.run("", "cache", "set", "filters", `{"period":"03-2026"}`)
	require.NoError(t, err)
	out, _, err = r.run("", "cache", "get", "filters")
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":"03-2026"}`, strings.TrimSpace(out))

	out, _, err = r.run("", "invoices")
	require.NoError(t, err)
	assert.Contains(t, out, "NUMBER")

	out, _, err = r.run("", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Compliance score")

	_, _, err = r.run("", "logout")
	require.NoError(t, err)
	_, errOut, err := r.run("", "whoami")
	require.Error(t, err)
	assert.Contains(t, errOut, "not signed in")

	_, errOut, err = r.run("wrong", "login", "--email", "x@example.com")
	require.Error(t, err)
	assert.Contains(t, errOut, "Invalid credentials")
}

func TestCLISwitchingUserDropsOtherCache(t *testing.T) {
	r := runner{server: newServer(t), state: filepath.Join(t.TempDir(), "session.json")}

	_, _, err := r.run("pw", "register", "--email", "x@example.com", "--name", "X")
	require.NoError(t, err)
	_, _, err = r.run("", "cache", "set", "draft", "x-secret")
	require.NoError(t, err)
	_, _, err = r.run("pw", "register", "--email", "y@example.com", "--name", "Y")
	require.NoError(t, err)

	out, _, err := r.run("", "cache", "keys")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))

	raw, err := os.ReadFile(r.state)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "x-secret")
}
