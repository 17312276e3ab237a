package models

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a time-ordered UUIDv7 string.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func assignID(id *string) error {
	if *id != "" {
		return nil
	}
	v, err := NewID()
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// resetStamps clears client supplied timestamps so gorm stamps them on insert.
func resetStamps(ts ...*time.Time) {
	for _, t := range ts {
		*t = time.Time{}
	}
}
