package database

import (
	"errors"

	appErr "github.com/finsync/engine/pkg/errors"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

// IsUniqueViolation reports whether err is a unique or primary key violation from any supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Classify maps a driver error to the application taxonomy. entity names the row kind in messages.
func Classify(err error, entity string) error {
	if err == nil {
		return nil
	}
	if _, ok := appErr.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return appErr.NotFound(entity + " not found")
	case IsUniqueViolation(err):
		return appErr.Wrap(err, appErr.CodeConflict, entity+" already exists")
	default:
		return appErr.Wrap(err, appErr.CodeInternal, entity+" storage failure")
	}
}
