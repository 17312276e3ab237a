package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	InvoiceStatusProcessed = "processed"
	InvoiceStatusError     = "error"
	InvoiceStatusPending   = "pending"
)

// Invoice is one extracted or hand-entered invoice row.
type Invoice struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        string    `gorm:"type:varchar(36);index;not null" json:"userId"`
	InvoiceNumber string    `gorm:"type:varchar(100);not null" json:"invoiceNumber"`
	Gstin         *string   `gorm:"type:varchar(50)" json:"gstin"`
	BuyerName     *string   `gorm:"type:varchar(255)" json:"buyerName"`
	Amount        *string   `gorm:"type:varchar(50)" json:"amount"`
	TaxAmount     *string   `gorm:"type:varchar(50)" json:"taxAmount"`
	HsnCode       *string   `gorm:"type:varchar(50)" json:"hsnCode"`
	Status        string    `gorm:"type:varchar(50);not null;default:processed" json:"status"`
	FileName      *string   `gorm:"type:varchar(255)" json:"fileName"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	resetStamps(&i.CreatedAt)
	if i.Status == "" {
		i.Status = InvoiceStatusProcessed
	}
	return assignID(&i.ID)
}
