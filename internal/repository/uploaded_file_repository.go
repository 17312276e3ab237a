package repository

import (
	"github.com/finsync/engine/internal/models"
	"gorm.io/gorm"
)

type UploadedFileRepository = OwnedRepository[models.UploadedFile]

func NewUploadedFileRepository(db *gorm.DB) UploadedFileRepository {
	return NewOwnedRepository[models.UploadedFile](db, "uploaded file", newestFirst)
}
