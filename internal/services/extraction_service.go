package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/finsync/engine/internal/extractor"
	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/internal/repository"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/finsync/engine/pkg/logger"
	"github.com/finsync/engine/pkg/utils"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// TaskExtractInvoices runs the extractor on one uploaded document.
	TaskExtractInvoices = "invoice:extract"

	MaxUploadBytes = 50 << 20
)

// Accepted upload types by extension.
var uploadTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".csv":  "text/csv",
}

// IncomingFile is one document handed to Ingest. Size may be -1 when unknown.
type IncomingFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ExtractPayload is the invoice:extract task payload.
type ExtractPayload struct {
	FileID   string `json:"file_id"`
	UserID   string `json:"user_id"`
	Path     string `json:"path"`
	FileName string `json:"file_name"`
}

type IngestResult struct {
	Success        bool                  `json:"success"`
	Message        string                `json:"message"`
	Queued         bool                  `json:"queued"`
	InvoicesCount  int                   `json:"invoicesCount"`
	ProcessedFiles int                   `json:"processedFiles"`
	DownloadURL    string                `json:"downloadUrl,omitempty"`
	Files          []models.UploadedFile `json:"files"`
}

type ExtractionService interface {
	Ingest(ctx context.Context, userID string, files []IncomingFile) (*IngestResult, error)
	// Process runs the extractor for one stored upload and persists what it returns.
	// A retryable failure leaves the file in processing with its temp copy in place.
	Process(ctx context.Context, p ExtractPayload) (int, error)
	// Abandon marks the upload failed and drops its temp copy.
	Abandon(ctx context.Context, p ExtractPayload, cause error)
}

type extractionService struct {
	users       repository.UserRepository
	files       repository.UploadedFileRepository
	invoices    repository.InvoiceRepository
	extractor   extractor.Extractor
	asynqClient *asynq.Client
	uploadDir   string
	now         func() time.Time
}

func NewExtractionService(
	users repository.UserRepository,
	files repository.UploadedFileRepository,
	invoices repository.InvoiceRepository,
	ex extractor.Extractor,
	client *asynq.Client,
	uploadDir string,
) ExtractionService {
	return &extractionService{
		users:       users,
		files:       files,
		invoices:    invoices,
		extractor:   ex,
		asynqClient: client,
		uploadDir:   uploadDir,
		now:         time.Now,
	}
}

var _ ExtractionService = (*extractionService)(nil)

func (s *extractionService) Ingest(ctx context.Context, userID string, files []IncomingFile) (*IngestResult, error) {
	if len(files) == 0 {
		return nil, appErr.Invalid("No files uploaded")
	}
	if userID == "" {
		return nil, appErr.Invalid("User ID is required")
	}
	for _, f := range files {
		if err := checkUpload(f); err != nil {
			return nil, err
		}
	}
	var u models.User
	if err := s.users.GetByID(ctx, userID, &u); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.NotFound("User not found")
		}
		return nil, err
	}
	if err := os.MkdirAll(s.uploadDir, 0o750); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "prepare upload directory failed")
	}

	logger.L().Info("ingest uploads", zap.String("user_id", userID), zap.Int("files", len(files)))

	out := &IngestResult{Files: make([]models.UploadedFile, 0, len(files))}
	jobs := make([]ExtractPayload, 0, len(files))
	for _, f := range files {
		rec := &models.UploadedFile{
			UserID:   userID,
			FileName: filepath.Base(f.Name),
			FileType: models.StringPtr(f.ContentType),
			Status:   models.FileStatusProcessing,
		}
		if f.Size >= 0 {
			rec.FileSize = models.StringPtr(strconv.FormatInt(f.Size, 10))
		}
		if err := s.files.Create(ctx, rec); err != nil {
			return nil, err
		}

		path, err := s.store(rec.ID, f)
		if err != nil {
			s.markFile(ctx, rec.ID, models.FileStatusError, errorDoc("Upload could not be stored"))
			s.abandonAll(ctx, jobs, err)
			return nil, err
		}
		jobs = append(jobs, ExtractPayload{FileID: rec.ID, UserID: userID, Path: path, FileName: rec.FileName})
		out.Files = append(out.Files, *rec)
	}

	if s.asynqClient != nil {
		for i, job := range jobs {
			if err := s.enqueue(ctx, job); err != nil {
				s.abandonAll(ctx, jobs[i+1:], err)
				return nil, err
			}
		}
		out.Success = true
		out.Queued = true
		out.Message = fmt.Sprintf("Queued %d file(s) for extraction.", len(jobs))
		return out, nil
	}

	for i, job := range jobs {
		n, err := s.Process(ctx, job)
		if err != nil {
			s.Abandon(ctx, job, err)
			s.abandonAll(ctx, jobs[i+1:], err)
			return nil, err
		}
		out.InvoicesCount += n
		out.ProcessedFiles++
		var fresh models.UploadedFile
		if err := s.files.GetByID(ctx, job.FileID, &fresh); err == nil {
			out.Files[i] = fresh
		}
	}
	out.Success = true
	out.DownloadURL = "/api/download-excel"
	out.Message = fmt.Sprintf("Successfully processed %d file(s). Check Reports section for Excel download.", out.ProcessedFiles)
	return out, nil
}

func checkUpload(f IncomingFile) error {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if _, ok := uploadTypes[ext]; !ok {
		return appErr.Invalid(fmt.Sprintf("Unsupported file type for %q. Allowed: PDF, PNG, JPEG, XLSX, CSV", f.Name)).
			WithMeta("field", "files")
	}
	if f.Size > MaxUploadBytes {
		return appErr.Invalid(fmt.Sprintf("%q exceeds the 50MB upload limit", f.Name)).WithMeta("field", "files")
	}
	return nil
}

// store streams the upload into uploadDir under <sha256>-<fileID><ext>.
func (s *extractionService) store(fileID string, f IncomingFile) (string, error) {
	tmp, err := os.CreateTemp(s.uploadDir, ".upload-*")
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInternal, "store upload failed")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := utils.NewSHA256Writer()
	n, err := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(f.Body, MaxUploadBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInternal, "store upload failed")
	}
	if n > MaxUploadBytes {
		return "", appErr.Invalid(fmt.Sprintf("%q exceeds the 50MB upload limit", f.Name))
	}

	name := h.Hex() + "-" + fileID + strings.ToLower(filepath.Ext(f.Name))
	dst := filepath.Join(s.uploadDir, name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", appErr.Wrap(err, appErr.CodeInternal, "store upload failed")
	}
	return dst, nil
}

func (s *extractionService) enqueue(ctx context.Context, job ExtractPayload) error {
	pb, _ := json.Marshal(job)
	task := asynq.NewTask(TaskExtractInvoices, pb, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute))
	info, err := s.asynqClient.EnqueueContext(ctx, task)
	if err != nil {
		logger.L().Error("enqueue extract task failed", zap.Error(err), zap.String("file_id", job.FileID))
		s.Abandon(ctx, job, err)
		return appErr.Dependency(err, "Could not queue the upload for extraction", true)
	}
	logger.L().Info("extract task enqueued", zap.String("file_id", job.FileID), zap.String("task_id", info.ID))
	return nil
}

func (s *extractionService) Process(ctx context.Context, p ExtractPayload) (int, error) {
	res, err := s.extractor.Extract(ctx, []string{p.Path})
	if err != nil {
		if retry, _ := appErr.Retryable(err); retry {
			return 0, err
		}
		s.Abandon(ctx, p, err)
		return 0, err
	}
	defer s.removeTemp(p.Path)

	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "No data extracted"
		}
		logger.L().Warn("extractor found no data", zap.String("file_id", p.FileID), zap.String("message", msg))
		s.markFile(ctx, p.FileID, models.FileStatusError, errorDoc(msg))
		return 0, nil
	}

	rows := make([]*models.Invoice, 0, len(res.Invoices))
	for _, raw := range res.Invoices {
		rows = append(rows, invoiceFromExtract(p, raw, s.now()))
	}
	if err := s.invoices.CreateBatch(ctx, rows); err != nil {
		s.markFile(ctx, p.FileID, models.FileStatusError, errorDoc("Extracted invoices could not be stored"))
		return 0, err
	}

	doc := string(res.Raw)
	if doc == "" {
		doc = "{}"
	}
	s.markFile(ctx, p.FileID, models.FileStatusCompleted, doc)
	logger.L().Info("extraction stored", zap.String("file_id", p.FileID), zap.Int("invoices", len(rows)))
	return len(rows), nil
}

func (s *extractionService) Abandon(ctx context.Context, p ExtractPayload, cause error) {
	msg := "Processing failed"
	if ae, ok := appErr.As(cause); ok {
		msg = ae.Message
	}
	s.markFile(ctx, p.FileID, models.FileStatusError, errorDoc(msg))
	s.removeTemp(p.Path)
}

func (s *extractionService) abandonAll(ctx context.Context, jobs []ExtractPayload, cause error) {
	for _, job := range jobs {
		s.Abandon(ctx, job, cause)
	}
}

func (s *extractionService) markFile(ctx context.Context, id, status, doc string) {
	err := s.files.Update(ctx, id, map[string]any{"status": status, "extracted_data": doc})
	if err != nil {
		logger.L().Error("update uploaded file failed", zap.Error(err), zap.String("file_id", id), zap.String("status", status))
	}
}

func (s *extractionService) removeTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.L().Warn("remove temp upload failed", zap.Error(err), zap.String("path", path))
	}
}

func errorDoc(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

// invoiceFromExtract maps one extractor invoice onto a row, tolerating the
// alternative key names different models emit.
func invoiceFromExtract(p ExtractPayload, raw map[string]any, now time.Time) *models.Invoice {
	number := firstField(raw, "invoice_number")
	if number == "" {
		number = "INV-" + strconv.FormatInt(now.UnixMilli(), 10)
	}
	buyer := firstField(raw, "buyer_name", "customer_name")
	if buyer == "" {
		buyer = "Unknown"
	}
	amount := firstField(raw, "amount", "total_amount")
	if amount == "" {
		amount = "0"
	}
	tax := firstField(raw, "tax_amount", "gst_amount")
	if tax == "" {
		tax = "0"
	}
	return &models.Invoice{
		UserID:        p.UserID,
		InvoiceNumber: number,
		Gstin:         models.StringPtr(firstField(raw, "gstin", "seller_gstin")),
		BuyerName:     &buyer,
		Amount:        &amount,
		TaxAmount:     &tax,
		HsnCode:       models.StringPtr(firstField(raw, "hsn_code", "hsn")),
		Status:        models.InvoiceStatusProcessed,
		FileName:      models.StringPtr(p.FileName),
	}
}

func firstField(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}
