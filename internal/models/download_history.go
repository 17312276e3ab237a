package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	DownloadTypeExcel            = "excel"
	DownloadTypeGovernmentUpload = "government_upload"
)

// DownloadHistory records one generated report handed to the user or the portal.
type DownloadHistory struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        string    `gorm:"type:varchar(36);index;not null" json:"userId"`
	Filename      string    `gorm:"type:varchar(255);not null" json:"filename"`
	FileType      string    `gorm:"type:varchar(50);not null;default:excel" json:"fileType"`
	InvoicesCount string    `gorm:"type:varchar(20);not null;default:0" json:"invoicesCount"`
	FileSize      *string   `gorm:"type:varchar(50)" json:"fileSize"`
	DownloadedAt  time.Time `gorm:"autoCreateTime" json:"downloadedAt"`
}

func (DownloadHistory) TableName() string { return "download_history" }

func (d *DownloadHistory) BeforeCreate(tx *gorm.DB) error {
	resetStamps(&d.DownloadedAt)
	if d.FileType == "" {
		d.FileType = DownloadTypeExcel
	}
	if d.InvoicesCount == "" {
		d.InvoicesCount = "0"
	}
	return assignID(&d.ID)
}
