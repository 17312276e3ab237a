//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/internal/schema"
	"github.com/finsync/engine/pkg/database"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("finsync"),
		tcpostgres.WithUsername("finsync"),
		tcpostgres.WithPassword("finsync"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open(ctx, database.Options{Driver: database.DriverPostgres, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	caps, err := schema.Gate(ctx, db, database.DriverPostgres, true)
	require.NoError(t, err)
	require.True(t, caps.UserPhone)

	users := NewUserRepository(db, caps.UserPhone)
	u := &models.User{Email: "pg@example.com", Name: "PG", Password: "h", IsActive: true}
	require.NoError(t, users.Create(ctx, u))

	err = users.Create(ctx, &models.User{Email: "pg@example.com", Name: "PG2", Password: "h", IsActive: true})
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))

	files := NewUploadedFileRepository(db)
	f := &models.UploadedFile{UserID: u.ID, FileName: "a.pdf"}
	require.NoError(t, files.Create(ctx, f))
	require.NoError(t, files.Update(ctx, f.ID, map[string]any{"extracted_data": `{"success":true}`}))

	list, err := files.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.JSONEq(t, `{"success":true}`, string(list[0].ExtractedData))

	require.NoError(t, users.Delete(ctx, u.ID))
	n, err := files.CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
