package portal

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/finsync/engine/pkg/logger"
	"go.uber.org/zap"
)

const (
	maxReportBytes   = 10 << 20
	smallReportBytes = 1 << 10
	refAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var transientFailures = []string{
	"Network timeout - please try again",
	"Government portal temporarily unavailable",
	"File format not recognized by portal",
	"Maximum daily upload limit exceeded",
}

var rejectionReasons = []string{
	"Missing mandatory GST fields in some records",
	"Invalid GSTIN format detected",
	"Tax calculations do not match expected values",
}

// Mock simulates the portal: 5% transient failure, 10% rejection, otherwise accepted for processing.
type Mock struct {
	latency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewMock returns a simulator. latency is the base delay; up to 1.5x more is added at random.
// A nil src seeds from the runtime.
func NewMock(latency time.Duration, src rand.Source) *Mock {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Mock{latency: latency, rng: rand.New(src), now: time.Now}
}

func (m *Mock) float() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64()
}

func (m *Mock) intn(n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.IntN(n)
}

// Validate checks the report before submission. Errors block the upload; warnings do not.
func (m *Mock) Validate(path string) (errs, warnings []string) {
	info, err := os.Stat(path)
	if err != nil {
		return []string{"File not found"}, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
	default:
		errs = append(errs, "File must be in Excel format (.xlsx or .xls)")
	}
	if info.Size() > maxReportBytes {
		errs = append(errs, "File size exceeds 10MB limit")
	}
	if info.Size() < smallReportBytes {
		warnings = append(warnings, "File seems very small, please verify it contains GST data")
	}
	if m.float() > 0.9 {
		warnings = append(warnings, "Some invoice entries may need manual review")
	}
	return errs, warnings
}

func (m *Mock) Upload(ctx context.Context, path string, meta Metadata) (*UploadResult, error) {
	log := logger.Named("portal")

	errs, warnings := m.Validate(path)
	if len(errs) > 0 {
		return &UploadResult{Success: false, Error: "File validation failed", ValidationErrors: errs}, nil
	}

	if err := m.sleep(ctx); err != nil {
		return nil, err
	}

	r := m.float()
	switch {
	case r < 0.05:
		msg := transientFailures[m.intn(len(transientFailures))]
		log.Warn("portal upload failed", zap.String("user_id", meta.UserID), zap.String("reason", msg))
		return &UploadResult{Success: false, Error: msg}, nil
	case r < 0.15:
		log.Warn("portal rejected upload", zap.String("user_id", meta.UserID))
		return &UploadResult{
			Success:          false,
			Error:            "File rejected by government portal",
			ValidationErrors: append([]string(nil), rejectionReasons...),
		}, nil
	}

	ref := m.reference()
	status := StatusSubmitted
	if r >= 0.8 {
		status = StatusProcessing
	}
	ts := m.now().UTC()
	log.Info("portal upload accepted", zap.String("user_id", meta.UserID), zap.String("reference", ref), zap.String("status", status))
	return &UploadResult{
		Success:         true,
		ReferenceNumber: ref,
		Timestamp:       &ts,
		Status:          status,
		Message:         fmt.Sprintf("File successfully uploaded to Government GST Portal. Reference: %s", ref),
		Warnings:        warnings,
	}, nil
}

func (m *Mock) Status(ctx context.Context, referenceNumber string) (*StatusResult, error) {
	statuses := []string{StatusSubmitted, StatusProcessing, StatusAccepted, StatusRejected}
	st := statuses[m.intn(len(statuses))]
	return &StatusResult{
		ReferenceNumber: referenceNumber,
		Status:          st,
		LastUpdated:     m.now().UTC(),
		Message:         fmt.Sprintf("Your submission is currently being %s", st),
	}, nil
}

// reference builds GST<yyyymmdd><last 6 digits of unix ms><6 random chars>.
func (m *Mock) reference() string {
	now := m.now()
	ms := fmt.Sprintf("%06d", now.UnixMilli()%1_000_000)
	var sb strings.Builder
	sb.WriteString("GST")
	sb.WriteString(now.Format("20060102"))
	sb.WriteString(ms)
	for i := 0; i < 6; i++ {
		sb.WriteByte(refAlphabet[m.intn(len(refAlphabet))])
	}
	return sb.String()
}

func (m *Mock) sleep(ctx context.Context) error {
	if m.latency <= 0 {
		return nil
	}
	d := m.latency + time.Duration(m.float()*1.5*float64(m.latency))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
