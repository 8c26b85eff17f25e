package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TestResult marks a completed attempt. It is written by the grading collaborator.
type TestResult struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TestCodeID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_test_results_code_student" json:"test_code_id"`
	StudentID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_test_results_code_student;index" json:"student_id"`
	Score          float64   `gorm:"not null;default:0" json:"score"`
	CorrectCount   int       `gorm:"not null;default:0" json:"correct_count"`
	TotalQuestions int       `gorm:"not null;default:0" json:"total_questions"`
	SubmittedAt    time.Time `gorm:"not null" json:"submitted_at"`
}

func (r *TestResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
