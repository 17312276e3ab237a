package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/internal/repository"
	appErr "github.com/finsync/engine/pkg/errors"
)

var periodPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])-\d{4}$`)

var returnStatuses = map[string]bool{
	models.ReturnStatusFiled:   true,
	models.ReturnStatusPending: true,
	models.ReturnStatusDraft:   true,
	models.ReturnStatusOverdue: true,
}

type GstReturnInput struct {
	UserID     string
	ReturnType string
	Period     string
	Status     string
	TotalTax   string
}

type GstReturnPatch struct {
	ReturnType *string
	Period     *string
	Status     *string
	TotalTax   *string
}

type InvoiceInput struct {
	UserID        string
	InvoiceNumber string
	Gstin         string
	BuyerName     string
	Amount        string
	TaxAmount     string
	HsnCode       string
	Status        string
	FileName      string
}

// RecordsService lists and edits the per-user bookkeeping rows.
// A non-empty actorID must own the row being changed.
type RecordsService interface {
	ListGstReturns(ctx context.Context, userID string) ([]models.GstReturn, error)
	CreateGstReturn(ctx context.Context, in GstReturnInput) (*models.GstReturn, error)
	UpdateGstReturn(ctx context.Context, id, actorID string, in GstReturnPatch) (*models.GstReturn, error)

	ListInvoices(ctx context.Context, userID string) ([]models.Invoice, error)
	CreateInvoice(ctx context.Context, in InvoiceInput) (*models.Invoice, error)

	ListFiles(ctx context.Context, userID string) ([]models.UploadedFile, error)

	ListDownloads(ctx context.Context, userID string) ([]models.DownloadHistory, error)
	DeleteDownload(ctx context.Context, id, actorID string) error
}

type recordsService struct {
	users     repository.UserRepository
	returns   repository.GstReturnRepository
	invoices  repository.InvoiceRepository
	files     repository.UploadedFileRepository
	downloads repository.DownloadHistoryRepository
	now       func() time.Time
}

func NewRecordsService(
	users repository.UserRepository,
	returns repository.GstReturnRepository,
	invoices repository.InvoiceRepository,
	files repository.UploadedFileRepository,
	downloads repository.DownloadHistoryRepository,
) RecordsService {
	return &recordsService{users: users, returns: returns, invoices: invoices, files: files, downloads: downloads, now: time.Now}
}

func (s *recordsService) requireUser(ctx context.Context, userID string) error {
	if userID == "" {
		return appErr.Invalid("User ID is required")
	}
	var u models.User
	if err := s.users.GetByID(ctx, userID, &u); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return appErr.NotFound("User not found")
		}
		return err
	}
	return nil
}

func (s *recordsService) ListGstReturns(ctx context.Context, userID string) ([]models.GstReturn, error) {
	return s.returns.ListByUser(ctx, userID)
}

func (s *recordsService) CreateGstReturn(ctx context.Context, in GstReturnInput) (*models.GstReturn, error) {
	r := &models.GstReturn{
		UserID:     in.UserID,
		ReturnType: strings.TrimSpace(in.ReturnType),
		Period:     strings.TrimSpace(in.Period),
		Status:     strings.TrimSpace(in.Status),
		TotalTax:   models.StringPtr(strings.TrimSpace(in.TotalTax)),
	}
	if r.Status == "" {
		r.Status = models.ReturnStatusPending
	}
	if err := validateReturn(r.ReturnType, r.Period, r.Status); err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, in.UserID); err != nil {
		return nil, err
	}
	if r.Status == models.ReturnStatusFiled {
		t := s.now().UTC()
		r.FiledAt = &t
	}
	if err := s.returns.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *recordsService) UpdateGstReturn(ctx context.Context, id, actorID string, in GstReturnPatch) (*models.GstReturn, error) {
	var current models.GstReturn
	if err := s.returns.GetByID(ctx, id, &current); err != nil {
		return nil, err
	}
	if actorID != "" && current.UserID != actorID {
		return nil, appErr.New(appErr.CodeForbidden, "Not allowed to modify this return")
	}

	next := current
	fields := map[string]any{}
	if in.ReturnType != nil {
		next.ReturnType = strings.TrimSpace(*in.ReturnType)
		fields["return_type"] = next.ReturnType
	}
	if in.Period != nil {
		next.Period = strings.TrimSpace(*in.Period)
		fields["period"] = next.Period
	}
	if in.Status != nil {
		next.Status = strings.TrimSpace(*in.Status)
		fields["status"] = next.Status
		if next.Status == models.ReturnStatusFiled && current.Status != models.ReturnStatusFiled {
			fields["filed_at"] = s.now().UTC()
		}
	}
	if in.TotalTax != nil {
		fields["total_tax"] = models.StringPtr(strings.TrimSpace(*in.TotalTax))
	}
	if err := validateReturn(next.ReturnType, next.Period, next.Status); err != nil {
		return nil, err
	}

	if err := s.returns.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	var out models.GstReturn
	if err := s.returns.GetByID(ctx, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func validateReturn(returnType, period, status string) error {
	if returnType == "" {
		return appErr.Invalid("Return type is required")
	}
	if !periodPattern.MatchString(period) {
		return appErr.Invalid("Period must be in MM-YYYY format")
	}
	if !returnStatuses[status] {
		return appErr.Invalid("Status must be one of Filed, Pending, Draft, Overdue")
	}
	return nil
}

func (s *recordsService) ListInvoices(ctx context.Context, userID string) ([]models.Invoice, error) {
	return s.invoices.ListByUser(ctx, userID)
}

func (s *recordsService) CreateInvoice(ctx context.Context, in InvoiceInput) (*models.Invoice, error) {
	number := strings.TrimSpace(in.InvoiceNumber)
	if number == "" {
		return nil, appErr.Invalid("Invoice number is required")
	}
	status := in.Status
	switch status {
	case "":
		status = models.InvoiceStatusProcessed
	case models.InvoiceStatusProcessed, models.InvoiceStatusError, models.InvoiceStatusPending:
	default:
		return nil, appErr.Invalid("Status must be one of processed, error, pending")
	}
	if err := s.requireUser(ctx, in.UserID); err != nil {
		return nil, err
	}

	inv := &models.Invoice{
		UserID:        in.UserID,
		InvoiceNumber: number,
		Gstin:         models.StringPtr(strings.TrimSpace(in.Gstin)),
		BuyerName:     models.StringPtr(strings.TrimSpace(in.BuyerName)),
		Amount:        models.StringPtr(strings.TrimSpace(in.Amount)),
		TaxAmount:     models.StringPtr(strings.TrimSpace(in.TaxAmount)),
		HsnCode:       models.StringPtr(strings.TrimSpace(in.HsnCode)),
		Status:        status,
		FileName:      models.StringPtr(strings.TrimSpace(in.FileName)),
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *recordsService) ListFiles(ctx context.Context, userID string) ([]models.UploadedFile, error) {
	return s.files.ListByUser(ctx, userID)
}

func (s *recordsService) ListDownloads(ctx context.Context, userID string) ([]models.DownloadHistory, error) {
	return s.downloads.ListByUser(ctx, userID)
}

func (s *recordsService) DeleteDownload(ctx context.Context, id, actorID string) error {
	if actorID != "" {
		var d models.DownloadHistory
		if err := s.downloads.GetByID(ctx, id, &d); err != nil {
			if appErr.IsCode(err, appErr.CodeNotFound) {
				return appErr.NotFound("Report not found")
			}
			return err
		}
		if d.UserID != actorID {
			return appErr.New(appErr.CodeForbidden, "Not allowed to delete this report")
		}
	}
	if err := s.downloads.Delete(ctx, id); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return appErr.NotFound("Report not found")
		}
		return err
	}
	return nil
}
