package repository

import (
	"context"

	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/pkg/database"
	"gorm.io/gorm"
)

type GstReturnRepository interface {
	OwnedRepository[models.GstReturn]
	CountByStatus(ctx context.Context, userID string) (map[string]int64, error)
}

type gstReturnRepository struct {
	OwnedRepository[models.GstReturn]
	db *gorm.DB
}

func NewGstReturnRepository(db *gorm.DB) GstReturnRepository {
	return &gstReturnRepository{
		OwnedRepository: NewOwnedRepository[models.GstReturn](db, "gst return", newestFirst),
		db:              db,
	}
}

func (r *gstReturnRepository) CountByStatus(ctx context.Context, userID string) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&models.GstReturn{}).
		Select("status, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, database.Classify(err, "gst return")
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}
