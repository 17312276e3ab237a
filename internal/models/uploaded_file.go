package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	FileStatusProcessing = "processing"
	FileStatusCompleted  = "completed"
	FileStatusError      = "error"
)

// UploadedFile tracks one document handed to the extractor.
type UploadedFile struct {
	ID            string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        string         `gorm:"type:varchar(36);index;not null" json:"userId"`
	FileName      string         `gorm:"type:varchar(255);not null" json:"fileName"`
	FileSize      *string        `gorm:"type:varchar(50)" json:"fileSize"`
	FileType      *string        `gorm:"type:varchar(100)" json:"fileType"`
	Status        string         `gorm:"type:varchar(50);not null;default:processing" json:"status"`
	ExtractedData datatypes.JSON `json:"extractedData"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func (f *UploadedFile) BeforeCreate(tx *gorm.DB) error {
	resetStamps(&f.CreatedAt)
	if f.Status == "" {
		f.Status = FileStatusProcessing
	}
	if len(f.ExtractedData) == 0 {
		f.ExtractedData = datatypes.JSON("{}")
	}
	return assignID(&f.ID)
}
