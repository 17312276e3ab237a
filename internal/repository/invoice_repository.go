package repository

import (
	"context"
	"time"

	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/pkg/database"
	"gorm.io/gorm"
)

type InvoiceRepository interface {
	OwnedRepository[models.Invoice]
	Recent(ctx context.Context, userID string, limit int) ([]models.Invoice, error)
	ListSince(ctx context.Context, userID string, since time.Time) ([]models.Invoice, error)
	CreateBatch(ctx context.Context, invoices []*models.Invoice) error
}

type invoiceRepository struct {
	OwnedRepository[models.Invoice]
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{
		OwnedRepository: NewOwnedRepository[models.Invoice](db, "invoice", newestFirst),
		db:              db,
	}
}

func (r *invoiceRepository) Recent(ctx context.Context, userID string, limit int) ([]models.Invoice, error) {
	out := make([]models.Invoice, 0, limit)
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order(newestFirst).Limit(limit).Find(&out).Error
	if err != nil {
		return nil, database.Classify(err, "invoice")
	}
	return out, nil
}

func (r *invoiceRepository) ListSince(ctx context.Context, userID string, since time.Time) ([]models.Invoice, error) {
	out := make([]models.Invoice, 0)
	err := r.db.WithContext(ctx).
		Select("id", "user_id", "invoice_number", "tax_amount", "created_at").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, database.Classify(err, "invoice")
	}
	return out, nil
}

// CreateBatch inserts all rows in one transaction.
func (r *invoiceRepository) CreateBatch(ctx context.Context, invoices []*models.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(invoices).Error
	})
	return database.Classify(err, "invoice")
}
