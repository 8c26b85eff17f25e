package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeTrueFalse      = "true_false"
)

// Question is read-only to the exam core; it is authored and imported elsewhere.
type Question struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Subject          string    `gorm:"size:100;not null;index:idx_questions_pool" json:"subject"`
	ClassLevel       string    `gorm:"size:50;not null;index:idx_questions_pool" json:"class_level"`
	Term             string    `gorm:"size:50;not null;index:idx_questions_pool" json:"term"`
	Session          string    `gorm:"size:20;not null;index:idx_questions_pool" json:"session"`
	AssignmentBucket string    `gorm:"size:50;not null;default:''" json:"assignment_bucket"`
	QuestionText     string    `gorm:"type:text;not null" json:"question_text"`
	QuestionType     string    `gorm:"size:50;not null;default:'multiple_choice'" json:"question_type"`
	OptionA          string    `gorm:"type:text" json:"option_a"`
	OptionB          string    `gorm:"type:text" json:"option_b"`
	OptionC          string    `gorm:"type:text" json:"option_c"`
	OptionD          string    `gorm:"type:text" json:"option_d"`
	CorrectAnswer    string    `gorm:"size:1;not null" json:"-"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// Options returns the four option slots in letter order.
func (q *Question) Options() [4]string {
	return [4]string{q.OptionA, q.OptionB, q.OptionC, q.OptionD}
}
