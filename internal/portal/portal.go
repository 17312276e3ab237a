// Package portal submits GST reports to the government portal.
// Only a simulator and a disabled stub exist; no live portal API is wired.
package portal

import (
	"context"
	"time"
)

const (
	StatusSubmitted  = "submitted"
	StatusProcessing = "processing"
	StatusAccepted   = "accepted"
	StatusRejected   = "rejected"
)

// Metadata describes who is uploading what.
type Metadata struct {
	OriginalFilename string
	UserID           string
}

// UploadResult mirrors what the portal answers for a submission.
type UploadResult struct {
	Success          bool       `json:"success"`
	ReferenceNumber  string     `json:"referenceNumber,omitempty"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
	Status           string     `json:"status,omitempty"`
	Message          string     `json:"message,omitempty"`
	Error            string     `json:"error,omitempty"`
	ValidationErrors []string   `json:"validationErrors,omitempty"`
	Warnings         []string   `json:"warnings,omitempty"`
}

// StatusResult is the answer to a status lookup.
type StatusResult struct {
	ReferenceNumber string    `json:"referenceNumber"`
	Status          string    `json:"status,omitempty"`
	LastUpdated     time.Time `json:"lastUpdated"`
	Message         string    `json:"message,omitempty"`
	Error           string    `json:"error,omitempty"`
}

type Uploader interface {
	Upload(ctx context.Context, path string, meta Metadata) (*UploadResult, error)
	Status(ctx context.Context, referenceNumber string) (*StatusResult, error)
}

// Disabled rejects every call; it stands in until a real portal client exists.
type Disabled struct {
	now func() time.Time
}

func NewDisabled() *Disabled { return &Disabled{now: time.Now} }

func (d *Disabled) Upload(ctx context.Context, path string, meta Metadata) (*UploadResult, error) {
	return &UploadResult{
		Success: false,
		Error:   "Real government API integration not yet implemented. Contact administrator for configuration.",
	}, nil
}

func (d *Disabled) Status(ctx context.Context, referenceNumber string) (*StatusResult, error) {
	return &StatusResult{
		ReferenceNumber: referenceNumber,
		LastUpdated:     d.now().UTC(),
		Error:           "Real API status check not implemented",
	}, nil
}
