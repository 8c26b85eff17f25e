package services

import (
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/anjiri1684/school_cbt/logger"
	"github.com/anjiri1684/school_cbt/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	logger.Log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

const (
	testSubject = "Mathematics"
	testClass   = "JSS1"
	testTerm    = "First Term"
	testSession = "2024/2025"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database shared by every query
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.TestCode{},
		&models.Question{},
		&models.TestResult{},
		&models.AnswerMapping{},
	))
	return db
}

func seedCode(t *testing.T, db *gorm.DB, mutate func(*models.TestCode)) *models.TestCode {
	t.Helper()

	tc := &models.TestCode{
		Code:             "ABC123",
		BatchID:          uuid.New(),
		Subject:          testSubject,
		ClassLevel:       testClass,
		Term:             testTerm,
		Session:          testSession,
		TestType:         "First CA",
		DurationMinutes:  30,
		QuestionCount:    15,
		ScorePerQuestion: 2,
		ExpiresAt:        time.Now().UTC().Add(24 * time.Hour),
		IsActive:         true,
		IsActivated:      true,
		Status:           models.CodeStatusActive,
	}
	if mutate != nil {
		mutate(tc)
	}
	require.NoError(t, db.Create(tc).Error)
	return tc
}

func seedQuestions(t *testing.T, db *gorm.DB, n int, bucket string) []models.Question {
	t.Helper()

	qs := make([]models.Question, n)
	for i := range qs {
		qs[i] = models.Question{
			Subject:          testSubject,
			ClassLevel:       testClass,
			Term:             testTerm,
			Session:          testSession,
			AssignmentBucket: bucket,
			QuestionText:     fmt.Sprintf("%s question %d", bucket, i),
			QuestionType:     models.QuestionTypeMultipleChoice,
			OptionA:          fmt.Sprintf("%s-%d-a", bucket, i),
			OptionB:          fmt.Sprintf("%s-%d-b", bucket, i),
			OptionC:          fmt.Sprintf("%s-%d-c", bucket, i),
			OptionD:          fmt.Sprintf("%s-%d-d", bucket, i),
			CorrectAnswer:    optionLetters[i%4],
		}
	}
	require.NoError(t, db.Create(&qs).Error)
	return qs
}

func seedResult(t *testing.T, db *gorm.DB, codeID, studentID uuid.UUID) {
	t.Helper()
	require.NoError(t, db.Create(&models.TestResult{
		TestCodeID:  codeID,
		StudentID:   studentID,
		SubmittedAt: time.Now().UTC(),
	}).Error)
}

func reloadCode(t *testing.T, db *gorm.DB, id uuid.UUID) models.TestCode {
	t.Helper()
	var tc models.TestCode
	require.NoError(t, db.First(&tc, "id = ?", id).Error)
	return tc
}

func optionValue(q DeliveredQuestion, label string) *string {
	switch label {
	case "A":
		return q.OptionA
	case "B":
		return q.OptionB
	case "C":
		return q.OptionC
	case "D":
		return q.OptionD
	}
	return nil
}
