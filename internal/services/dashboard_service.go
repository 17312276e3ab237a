package services

import (
	"context"
	"math"
	"time"

	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/internal/repository"
	"github.com/finsync/engine/pkg/utils"
)

const (
	recentInvoiceCount = 5
	trendMonths        = 6
)

type DashboardStats struct {
	TotalGstCollection float64          `json:"totalGstCollection"`
	ProcessedReturns   int64            `json:"processedReturns"`
	PendingActions     int64            `json:"pendingActions"`
	ComplianceScore    int              `json:"complianceScore"`
	RecentInvoices     []models.Invoice `json:"recentInvoices"`
	UploadedFilesCount int64            `json:"uploadedFilesCount"`
}

// ChartData is a labelled series for the dashboard charts.
type ChartData struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

type DashboardService interface {
	Stats(ctx context.Context, userID string) (*DashboardStats, error)
	ComplianceChart(ctx context.Context, userID string) (*ChartData, error)
	GstTrends(ctx context.Context, userID string) (*ChartData, error)
}

type dashboardService struct {
	returns  repository.GstReturnRepository
	invoices repository.InvoiceRepository
	files    repository.UploadedFileRepository
	now      func() time.Time
}

func NewDashboardService(returns repository.GstReturnRepository, invoices repository.InvoiceRepository, files repository.UploadedFileRepository) DashboardService {
	return &dashboardService{returns: returns, invoices: invoices, files: files, now: time.Now}
}

func (s *dashboardService) Stats(ctx context.Context, userID string) (*DashboardStats, error) {
	counts, err := s.returns.CountByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.invoices.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.invoices.Recent(ctx, userID, recentInvoiceCount)
	if err != nil {
		return nil, err
	}
	filesCount, err := s.files.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	var tax float64
	for _, inv := range all {
		tax += utils.ParseAmount(models.Deref(inv.TaxAmount))
	}

	filed := counts[models.ReturnStatusFiled]
	return &DashboardStats{
		TotalGstCollection: math.Round(tax*100) / 100,
		ProcessedReturns:   filed,
		PendingActions:     counts[models.ReturnStatusPending],
		ComplianceScore:    int(math.Round(float64(filed) / float64(max(total, 1)) * 100)),
		RecentInvoices:     recent,
		UploadedFilesCount: filesCount,
	}, nil
}

func (s *dashboardService) ComplianceChart(ctx context.Context, userID string) (*ChartData, error) {
	counts, err := s.returns.CountByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ChartData{
		Labels: []string{"Completed", "Pending", "Overdue"},
		Data: []float64{
			float64(counts[models.ReturnStatusFiled]),
			float64(counts[models.ReturnStatusPending]),
			float64(counts[models.ReturnStatusOverdue]),
		},
	}, nil
}

// GstTrends sums invoice tax per calendar month over the last six months, current month last.
func (s *dashboardService) GstTrends(ctx context.Context, userID string) (*ChartData, error) {
	now := s.now().UTC()
	first := time.Date(now.Year(), now.Month()-trendMonths+1, 1, 0, 0, 0, 0, time.UTC)

	invoices, err := s.invoices.ListSince(ctx, userID, first)
	if err != nil {
		return nil, err
	}

	out := &ChartData{Labels: make([]string, trendMonths), Data: make([]float64, trendMonths)}
	for i := 0; i < trendMonths; i++ {
		out.Labels[i] = first.AddDate(0, i, 0).Format("Jan")
	}
	for _, inv := range invoices {
		c := inv.CreatedAt.UTC()
		idx := (c.Year()-first.Year())*12 + int(c.Month()) - int(first.Month())
		if idx < 0 || idx >= trendMonths {
			continue
		}
		out.Data[idx] += utils.ParseAmount(models.Deref(inv.TaxAmount))
	}
	for i := range out.Data {
		out.Data[i] = math.Round(out.Data[i]*100) / 100
	}
	return out, nil
}
