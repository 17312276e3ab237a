package services

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/internal/portal"
	"github.com/finsync/engine/internal/repository"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/finsync/engine/pkg/logger"
	"go.uber.org/zap"
)

// ReportDownloadName is the attachment name of the consolidated workbook.
const ReportDownloadName = "GST_Invoices_Extract.xlsx"

// Report is a ready-to-serve consolidated workbook.
type Report struct {
	Path string
	Name string
	Size int64
}

type ReportService interface {
	// Download locates the workbook and logs the download for userID.
	Download(ctx context.Context, userID string) (*Report, error)
	// SubmitToPortal uploads the workbook. A portal rejection is returned as
	// a result with Success false, not as an error.
	SubmitToPortal(ctx context.Context, userID, filename string) (*portal.UploadResult, error)
	PortalStatus(ctx context.Context, referenceNumber string) (*portal.StatusResult, error)
}

type reportService struct {
	invoices  repository.InvoiceRepository
	downloads repository.DownloadHistoryRepository
	uploader  portal.Uploader
	path      string
}

func NewReportService(invoices repository.InvoiceRepository, downloads repository.DownloadHistoryRepository, uploader portal.Uploader, reportPath string) ReportService {
	return &reportService{invoices: invoices, downloads: downloads, uploader: uploader, path: reportPath}
}

func (s *reportService) stat() (fs.FileInfo, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErr.NotFound("Excel file not found").
				WithMeta("details", "Please generate the Excel file first by processing invoices")
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "stat report failed")
	}
	return fi, nil
}

func (s *reportService) Download(ctx context.Context, userID string) (*Report, error) {
	if userID == "" {
		return nil, appErr.Invalid("User ID is required")
	}
	fi, err := s.stat()
	if err != nil {
		return nil, err
	}

	// History is best effort; the file is served regardless.
	count, err := s.invoices.CountByUser(ctx, userID)
	if err != nil {
		logger.L().Warn("count invoices for download failed", zap.Error(err), zap.String("user_id", userID))
	}
	size := strconv.FormatInt(fi.Size(), 10)
	entry := &models.DownloadHistory{
		UserID:        userID,
		Filename:      ReportDownloadName,
		FileType:      models.DownloadTypeExcel,
		InvoicesCount: strconv.FormatInt(count, 10),
		FileSize:      &size,
	}
	if err := s.downloads.Create(ctx, entry); err != nil {
		logger.L().Warn("record download failed", zap.Error(err), zap.String("user_id", userID))
	}
	return &Report{Path: s.path, Name: ReportDownloadName, Size: fi.Size()}, nil
}

func (s *reportService) SubmitToPortal(ctx context.Context, userID, filename string) (*portal.UploadResult, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, appErr.Invalid("Filename is required")
	}
	if userID == "" {
		return nil, appErr.Invalid("User ID is required")
	}
	if _, err := s.stat(); err != nil {
		return nil, err
	}

	res, err := s.uploader.Upload(ctx, s.path, portal.Metadata{OriginalFilename: filename, UserID: userID})
	if err != nil {
		return nil, appErr.Dependency(err, "Upload to government portal failed", true)
	}
	if !res.Success {
		logger.L().Info("portal rejected upload", zap.String("user_id", userID), zap.String("error", res.Error))
		return res, nil
	}

	zero := "0"
	entry := &models.DownloadHistory{
		UserID:        userID,
		Filename:      "GOVT_UPLOAD_" + filename,
		FileType:      models.DownloadTypeGovernmentUpload,
		InvoicesCount: "Multiple",
		FileSize:      &zero,
	}
	if err := s.downloads.Create(ctx, entry); err != nil {
		logger.L().Error("record portal upload failed", zap.Error(err), zap.String("reference", res.ReferenceNumber))
	}
	logger.L().Info("portal upload accepted", zap.String("user_id", userID), zap.String("reference", res.ReferenceNumber))
	return res, nil
}

func (s *reportService) PortalStatus(ctx context.Context, referenceNumber string) (*portal.StatusResult, error) {
	if strings.TrimSpace(referenceNumber) == "" {
		return nil, appErr.Invalid("Reference number is required")
	}
	res, err := s.uploader.Status(ctx, referenceNumber)
	if err != nil {
		return nil, appErr.Dependency(err, "Failed to check status", true)
	}
	return res, nil
}
