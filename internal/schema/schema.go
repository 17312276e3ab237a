// Package schema owns the versioned SQL migrations and the startup check that
// decides which optional columns the connected database actually has.
package schema

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/finsync/engine/pkg/database"
	"github.com/finsync/engine/pkg/logger"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed migrations
var migrations embed.FS

// Latest is the newest migration version shipped with this build.
const Latest int64 = 2

// Capabilities records optional schema features found at startup.
type Capabilities struct {
	// UserPhone is false on deployments created before users.phone existed.
	UserPhone bool
}

// Migrator runs the embedded migrations for one database.
type Migrator struct {
	provider *goose.Provider
}

// NewMigrator binds the embedded migrations for driver to db.
func NewMigrator(db *gorm.DB, driver string) (*Migrator, error) {
	dialect, dir, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("schema: sql handle: %w", err)
	}
	fsys, err := fs.Sub(migrations, "migrations/"+dir)
	if err != nil {
		return nil, fmt.Errorf("schema: migrations for %s: %w", driver, err)
	}
	p, err := goose.NewProvider(dialect, sqlDB, fsys)
	if err != nil {
		return nil, fmt.Errorf("schema: goose provider: %w", err)
	}
	return &Migrator{provider: p}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	logResults(results)
	if err != nil {
		return fmt.Errorf("schema: migrate up: %w", err)
	}
	return nil
}

// UpTo applies pending migrations up to and including version.
func (m *Migrator) UpTo(ctx context.Context, version int64) error {
	results, err := m.provider.UpTo(ctx, version)
	logResults(results)
	if err != nil {
		return fmt.Errorf("schema: migrate up to %d: %w", version, err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	res, err := m.provider.Down(ctx)
	if res != nil {
		logResults([]*goose.MigrationResult{res})
	}
	if err != nil {
		return fmt.Errorf("schema: migrate down: %w", err)
	}
	return nil
}

// Version returns the highest applied version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

// Status reports every known migration and whether it has been applied.
func (m *Migrator) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return m.provider.Status(ctx)
}

// Gate runs pending migrations when autoMigrate is set and then inspects the
// users table once. It fails when the base tables are missing.
func Gate(ctx context.Context, db *gorm.DB, driver string, autoMigrate bool) (Capabilities, error) {
	if autoMigrate {
		m, err := NewMigrator(db, driver)
		if err != nil {
			return Capabilities{}, err
		}
		if err := m.Up(ctx); err != nil {
			return Capabilities{}, err
		}
	}
	return Inspect(ctx, db)
}

// Inspect reads optional column presence from the live schema.
func Inspect(ctx context.Context, db *gorm.DB) (Capabilities, error) {
	mig := db.WithContext(ctx).Migrator()
	if !mig.HasTable("users") {
		return Capabilities{}, fmt.Errorf("schema: users table missing; run migrations first")
	}
	caps := Capabilities{UserPhone: mig.HasColumn("users", "phone")}
	if !caps.UserPhone {
		logger.Named("schema").Warn("users.phone column missing; user repository runs in legacy mode")
	}
	return caps, nil
}

func dialectFor(driver string) (goose.Dialect, string, error) {
	switch driver {
	case database.DriverPostgres:
		return goose.DialectPostgres, "postgres", nil
	case database.DriverMySQL:
		return goose.DialectMySQL, "mysql", nil
	case database.DriverSQLite:
		return goose.DialectSQLite3, "sqlite3", nil
	default:
		return "", "", fmt.Errorf("schema: unsupported driver %q", driver)
	}
}

func logResults(results []*goose.MigrationResult) {
	log := logger.Named("schema")
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		if r.Error != nil {
			log.Error("migration failed", zap.Int64("version", r.Source.Version), zap.String("direction", r.Direction), zap.Error(r.Error))
			continue
		}
		log.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("direction", r.Direction),
			zap.Duration("duration", r.Duration),
		)
	}
}
