package services

import (
	"context"
	"testing"
	"time"

	"github.com/finsync/engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardStats(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u := s.seedUser(t, "dash@example.com")
	records := newRecords(s)

	for _, st := range []string{"Filed", "Filed", "Filed", "Pending", "Overdue"} {
		_, err := records.CreateGstReturn(ctx, GstReturnInput{UserID: u.ID, ReturnType: "GSTR-1", Period: "01-2026", Status: st})
		require.NoError(t, err)
	}
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, tax := range []string{"100.25", "₹1,000", "abc", "", "10", "5", "1"} {
		inv, err := records.CreateInvoice(ctx, InvoiceInput{UserID: u.ID, InvoiceNumber: "INV-" + string(rune('A'+i)), TaxAmount: tax})
		require.NoError(t, err)
		when := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.db.Model(&models.Invoice{}).Where("id = ?", inv.ID).Update("created_at", when).Error)
	}
	require.NoError(t, s.files.Create(ctx, &models.UploadedFile{UserID: u.ID, FileName: "a.pdf"}))

	svc := NewDashboardService(s.returns, s.invoices, s.files)
	st, err := svc.Stats(ctx, u.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1116.25, st.TotalGstCollection, 0.001)
	assert.EqualValues(t, 3, st.ProcessedReturns)
	assert.EqualValues(t, 1, st.PendingActions)
	assert.Equal(t, 60, st.ComplianceScore)
	require.Len(t, st.RecentInvoices, 5)
	numbers := make([]string, 0, len(st.RecentInvoices))
	for _, inv := range st.RecentInvoices {
		numbers = append(numbers, inv.InvoiceNumber)
	}
	assert.Equal(t, []string{"INV-G", "INV-F", "INV-E", "INV-D", "INV-C"}, numbers)
	assert.EqualValues(t, 1, st.UploadedFilesCount)

	chart, err := svc.ComplianceChart(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Completed", "Pending", "Overdue"}, chart.Labels)
	assert.Equal(t, []float64{3, 1, 1}, chart.Data)
}

func TestDashboardStatsEmpty(t *testing.T) {
	s := newStore(t)
	u := s.seedUser(t, "empty@example.com")
	st, err := NewDashboardService(s.returns, s.invoices, s.files).Stats(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Zero(t, st.ComplianceScore)
	assert.NotNil(t, st.RecentInvoices)
	assert.Empty(t, st.RecentInvoices)
}

func TestGstTrends(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u := s.seedUser(t, "trend@example.com")
	records := newRecords(s)

	at := func(number, tax string, when time.Time) {
		inv, err := records.CreateInvoice(ctx, InvoiceInput{UserID: u.ID, InvoiceNumber: number, TaxAmount: tax})
		require.NoError(t, err)
		require.NoError(t, s.db.Model(&models.Invoice{}).Where("id = ?", inv.ID).Update("created_at", when).Error)
	}
	at("OLD", "999", time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC))
	at("JAN", "10", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	at("MAR1", "5.5", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	at("MAR2", "4.5", time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))
	at("JUN", "7", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	svc := NewDashboardService(s.returns, s.invoices, s.files).(*dashboardService)
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }

	trends, err := svc.GstTrends(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun"}, trends.Labels)
	assert.Equal(t, []float64{10, 0, 10, 0, 0, 7}, trends.Data)
}
