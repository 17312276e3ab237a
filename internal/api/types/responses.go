package types

import (
	"time"

	"github.com/finsync/engine/internal/models"
)

type UserResponse struct {
	User *models.User `json:"user"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type AvatarResponse struct {
	Message   string `json:"message"`
	AvatarURL string `json:"avatarUrl"`
}

type GovernmentUploadResponse struct {
	Success         bool       `json:"success"`
	Message         string     `json:"message"`
	ReferenceNumber string     `json:"referenceNumber"`
	UploadTimestamp *time.Time `json:"uploadTimestamp,omitempty"`
	Status          string     `json:"status"`
	Warnings        []string   `json:"warnings,omitempty"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
