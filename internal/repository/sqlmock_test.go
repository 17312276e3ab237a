package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/finsync/engine/internal/models"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func mockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestDriverErrorsBecomeInternal(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery(`SELECT .* FROM "invoices"`).WillReturnError(errors.New("connection reset by peer"))

	_, err := NewInvoiceRepository(db).ListByUser(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeInternal))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUniqueViolationBecomesConflict(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectExec(`INSERT INTO "users"`).WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	err := NewUserRepository(db, true).Create(context.Background(), &models.User{Email: "a@b.com", Name: "A", Password: "h", IsActive: true})
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))
}

func TestMissingRowBecomesNotFound(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery(`SELECT .* FROM "gst_returns"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	var r models.GstReturn
	err := NewGstReturnRepository(db).GetByID(context.Background(), "missing", &r)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestLegacyReadSelectsReducedColumns(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery(`SELECT "id","email","name","company","avatar","password","is_active","created_at","updated_at" FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name"}).AddRow("u1", "a@b.com", "A"))

	var u models.User
	require.NoError(t, NewUserRepository(db, false).GetByEmail(context.Background(), "a@b.com", &u))
	assert.Equal(t, "u1", u.ID)
	assert.Nil(t, u.Phone)
	require.NoError(t, mock.ExpectationsWereMet())
}
