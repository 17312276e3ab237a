package repository

import (
	"github.com/finsync/engine/internal/models"
	"gorm.io/gorm"
)

type DownloadHistoryRepository = OwnedRepository[models.DownloadHistory]

func NewDownloadHistoryRepository(db *gorm.DB) DownloadHistoryRepository {
	return NewOwnedRepository[models.DownloadHistory](db, "download history", "downloaded_at DESC, id DESC")
}
