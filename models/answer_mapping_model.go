package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AnswerMapping is the SQL-backed paper and grading key for one (test code, student) pair.
type AnswerMapping struct {
	TestCodeID uuid.UUID         `gorm:"type:uuid;primaryKey"`
	StudentID  uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Mapping    datatypes.JSONMap `gorm:"not null"`
	Questions  datatypes.JSON    `gorm:"not null"`
	ExpiresAt  time.Time         `gorm:"not null;index"`
	UpdatedAt  time.Time
}
