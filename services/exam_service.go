package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anjiri1684/school_cbt/logger"
	"github.com/anjiri1684/school_cbt/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const compensationTimeout = 5 * time.Second

// ExamPaper is the sanitized exam returned to a student.
type ExamPaper struct {
	TestCodeID       uuid.UUID           `json:"test_code_id"`
	Code             string              `json:"test_code"`
	Subject          string              `json:"subject"`
	ClassLevel       string              `json:"class_level"`
	Term             string              `json:"term"`
	Session          string              `json:"session"`
	TestType         string              `json:"test_type"`
	DurationMinutes  int                 `json:"duration_minutes"`
	ScorePerQuestion float64             `json:"score_per_question"`
	TotalQuestions   int                 `json:"total_questions"`
	StartedAt        *time.Time          `json:"started_at"`
	ExpiresAt        time.Time           `json:"expires_at"`
	Questions        []DeliveredQuestion `json:"questions"`
}

type ExamOptions struct {
	Policy TestTypePolicy
	// MappingGrace keeps an answer key alive past code expiry for late grading.
	MappingGrace time.Duration
}

// ExamService runs redemption and delivery: guard, compare-and-swap,
// assembly and answer key persistence.
type ExamService struct {
	registry  *CodeRegistry
	guard     *DuplicateGuard
	assembler *ExamAssembler
	mappings  MappingStore
	opts      ExamOptions
	now       func() time.Time
}

func NewExamService(registry *CodeRegistry, guard *DuplicateGuard, assembler *ExamAssembler, mappings MappingStore, opts ExamOptions) *ExamService {
	return &ExamService{
		registry:  registry,
		guard:     guard,
		assembler: assembler,
		mappings:  mappings,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Redeem claims code for studentID and returns a freshly assembled paper.
// Every check runs before the claim; a failure after it releases the code.
func (s *ExamService) Redeem(ctx context.Context, code string, studentID uuid.UUID) (*ExamPaper, error) {
	tc, err := s.registry.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := checkRedeemable(tc, s.now()); err != nil {
		return nil, err
	}
	if err := s.guard.Check(ctx, studentID, tc); err != nil {
		return nil, err
	}

	filter := FilterForCode(tc, s.opts.Policy)
	if err := s.assembler.EnsureAvailable(ctx, filter, tc.QuestionCount); err != nil {
		return nil, err
	}

	redeemed, err := s.registry.redeemSnapshot(ctx, tc, studentID)
	if err != nil {
		return nil, err
	}

	paper, err := s.issuePaper(ctx, redeemed, studentID)
	if err != nil {
		s.compensate(ctx, redeemed, studentID, err)
		return nil, err
	}
	return paper, nil
}

// Deliver returns the paper issued when the student redeemed the code, with
// the same questions, option order and answer key.
func (s *ExamService) Deliver(ctx context.Context, code string, studentID uuid.UUID) (*ExamPaper, error) {
	tc, err := s.registry.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	switch tc.Status {
	case models.CodeStatusActive:
		return nil, ErrNotRedeemed
	case models.CodeStatusUsing, models.CodeStatusUsed:
		if tc.UsedBy == nil || *tc.UsedBy != studentID {
			return nil, ErrForbidden
		}
		if tc.Status == models.CodeStatusUsed {
			return nil, ErrAlreadyConsumed
		}
	default:
		return nil, fmt.Errorf("test code %s has unknown status %q", tc.Code, tc.Status)
	}

	if tc.Expired(s.now()) {
		return nil, ErrExpired
	}
	done, err := s.guard.HasResult(ctx, tc.ID, studentID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, ErrAlreadyConsumed
	}

	stored, err := s.mappings.Get(ctx, tc.ID, studentID)
	switch {
	case err == nil:
		return s.paperFor(tc, stored), nil
	case errors.Is(err, ErrMappingNotFound):
		// the stored paper was lost (store flushed or purged); issue a new one
		logger.Log.WithFields(logrus.Fields{"code": tc.Code, "student_id": studentID}).Warn("issued paper missing, assembling a new one")
		return s.issuePaper(ctx, tc, studentID)
	default:
		return nil, err
	}
}

// AnswerKey is the grading collaborator's view of the issued paper.
func (s *ExamService) AnswerKey(ctx context.Context, testID, studentID uuid.UUID) (AnswerKey, error) {
	paper, err := s.mappings.Get(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}
	return paper.Key, nil
}

// ConsumeAnswerKey returns the key and removes it so it cannot be replayed.
func (s *ExamService) ConsumeAnswerKey(ctx context.Context, testID, studentID uuid.UUID) (AnswerKey, error) {
	paper, err := s.mappings.Get(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.mappings.Delete(ctx, testID, studentID); err != nil {
		return nil, fmt.Errorf("consume answer key: %w", err)
	}
	return paper.Key, nil
}

func (s *ExamService) issuePaper(ctx context.Context, tc *models.TestCode, studentID uuid.UUID) (*ExamPaper, error) {
	assignment, err := s.assembler.Assemble(ctx, FilterForCode(tc, s.opts.Policy), tc.QuestionCount)
	if err != nil {
		return nil, err
	}

	expiresAt := tc.ExpiresAt.Add(s.opts.MappingGrace)
	if err := s.mappings.Put(ctx, tc.ID, studentID, assignment, expiresAt); err != nil {
		return nil, err
	}
	return s.paperFor(tc, assignment), nil
}

func (s *ExamService) paperFor(tc *models.TestCode, assignment *ExamAssignment) *ExamPaper {
	return &ExamPaper{
		TestCodeID:       tc.ID,
		Code:             tc.Code,
		Subject:          tc.Subject,
		ClassLevel:       tc.ClassLevel,
		Term:             tc.Term,
		Session:          tc.Session,
		TestType:         tc.TestType,
		DurationMinutes:  tc.DurationMinutes,
		ScorePerQuestion: tc.ScorePerQuestion,
		TotalQuestions:   len(assignment.Questions),
		StartedAt:        tc.UsedAt,
		ExpiresAt:        tc.ExpiresAt,
		Questions:        assignment.Questions,
	}
}

// compensate returns a freshly redeemed code to active. It outlives the
// request context so a dropped client cannot leave the code stuck.
func (s *ExamService) compensate(ctx context.Context, tc *models.TestCode, studentID uuid.UUID, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	entry := logger.Log.WithFields(logrus.Fields{"code": tc.Code, "student_id": studentID, "cause": cause.Error()})
	if err := s.registry.Release(ctx, tc.ID, studentID); err != nil {
		entry.WithError(err).Error("failed to release test code after assembly failure")
		return
	}
	if err := s.mappings.Delete(ctx, tc.ID, studentID); err != nil && !errors.Is(err, ErrMappingNotFound) {
		entry.WithError(err).Warn("failed to drop answer key of released test code")
	}
	entry.Warn("assembly failed after redemption, test code released")
}
