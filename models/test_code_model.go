package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CodeStatus is the redemption state of a TestCode.
type CodeStatus string

const (
	CodeStatusActive CodeStatus = "active"
	CodeStatusUsing  CodeStatus = "using"
	CodeStatusUsed   CodeStatus = "used"
)

func (s CodeStatus) Valid() bool {
	switch s {
	case CodeStatusActive, CodeStatusUsing, CodeStatusUsed:
		return true
	}
	return false
}

type TestCode struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Code             string     `gorm:"size:16;not null;uniqueIndex" json:"code"`
	BatchID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"batch_id"`
	Subject          string     `gorm:"size:100;not null;index:idx_test_codes_scope" json:"subject"`
	ClassLevel       string     `gorm:"size:50;not null;index:idx_test_codes_scope" json:"class_level"`
	Term             string     `gorm:"size:50;not null;index:idx_test_codes_scope" json:"term"`
	Session          string     `gorm:"size:20;not null" json:"session"`
	TestType         string     `gorm:"size:50;not null" json:"test_type"`
	DurationMinutes  int        `gorm:"not null" json:"duration_minutes"`
	QuestionCount    int        `gorm:"not null" json:"question_count"`
	ScorePerQuestion float64    `gorm:"not null" json:"score_per_question"`
	ExpiresAt        time.Time  `gorm:"not null" json:"expires_at"`
	IsActive         bool       `gorm:"not null" json:"is_active"`
	IsActivated      bool       `gorm:"not null" json:"is_activated"`
	ActivatedAt      *time.Time `json:"activated_at"`
	Status           CodeStatus `gorm:"size:10;not null;index" json:"status"`
	UsedBy           *uuid.UUID `gorm:"type:uuid" json:"used_by"`
	UsedAt           *time.Time `json:"used_at"`
	CreatedBy        uuid.UUID  `gorm:"type:uuid" json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *TestCode) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = CodeStatusActive
	}
	if !t.Status.Valid() {
		return fmt.Errorf("invalid test code status %q", t.Status)
	}
	return nil
}

// Expired reports whether the code can no longer be redeemed at now.
func (t *TestCode) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
