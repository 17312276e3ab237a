package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ReturnStatusFiled   = "Filed"
	ReturnStatusPending = "Pending"
	ReturnStatusDraft   = "Draft"
	ReturnStatusOverdue = "Overdue"
)

// GstReturn is one periodic GST filing (GSTR-1, GSTR-3B, ...) for a period in MM-YYYY form.
type GstReturn struct {
	ID         string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string     `gorm:"type:varchar(36);index;not null" json:"userId"`
	ReturnType string     `gorm:"type:varchar(50);not null" json:"returnType"`
	Period     string     `gorm:"type:varchar(20);not null" json:"period"`
	Status     string     `gorm:"type:varchar(50);not null" json:"status"`
	TotalTax   *string    `gorm:"type:varchar(50)" json:"totalTax"`
	FiledAt    *time.Time `json:"filedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (r *GstReturn) BeforeCreate(tx *gorm.DB) error {
	resetStamps(&r.CreatedAt, &r.UpdatedAt)
	return assignID(&r.ID)
}
