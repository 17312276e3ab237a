package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/internal/repository"
	"github.com/finsync/engine/internal/schema"
	"github.com/finsync/engine/pkg/database"
	"github.com/finsync/engine/pkg/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.UseNop()
	m.Run()
}

// store bundles a migrated sqlite database with its repositories.
type store struct {
	db        *gorm.DB
	users     repository.UserRepository
	returns   repository.GstReturnRepository
	invoices  repository.InvoiceRepository
	files     repository.UploadedFileRepository
	downloads repository.DownloadHistoryRepository
}

func newStoreAt(t *testing.T, version int64) *store {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "svc.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	m, err := schema.NewMigrator(db, database.DriverSQLite)
	require.NoError(t, err)
	require.NoError(t, m.UpTo(ctx, version))
	caps, err := schema.Inspect(ctx, db)
	require.NoError(t, err)

	return &store{
		db:        db,
		users:     repository.NewUserRepository(db, caps.UserPhone),
		returns:   repository.NewGstReturnRepository(db),
		invoices:  repository.NewInvoiceRepository(db),
		files:     repository.NewUploadedFileRepository(db),
		downloads: repository.NewDownloadHistoryRepository(db),
	}
}

func newStore(t *testing.T) *store { return newStoreAt(t, schema.Latest) }

func newAuth(s *store) AuthService {
	return NewAuthService(s.users, NewTokenIssuer([]byte("test-secret"), time.Hour))
}

func (s *store) seedUser(t *testing.T, email string) *models.User {
	t.Helper()
	res, err := newAuth(s).Register(context.Background(), RegisterInput{Email: email, Password: "pw", Name: "Seed"})
	require.NoError(t, err)
	return res.User
}
