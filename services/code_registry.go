package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anjiri1684/school_cbt/logger"
	"github.com/anjiri1684/school_cbt/models"
	"github.com/anjiri1684/school_cbt/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var validate = validator.New()

// batchHasNoResults guards batch mutations: the statement matches nothing once
// any code of the batch has a recorded result.
const batchHasNoResults = `NOT EXISTS (
	SELECT 1 FROM test_results
	JOIN test_codes AS batch_codes ON batch_codes.id = test_results.test_code_id
	WHERE batch_codes.batch_id = ?)`

const batchAllActive = `NOT EXISTS (
	SELECT 1 FROM test_codes AS batch_codes
	WHERE batch_codes.batch_id = ? AND batch_codes.status <> ?)`

// CodeRegistry owns TestCode rows and every write to status, used_by and used_at.
type CodeRegistry struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCodeRegistry(db *gorm.DB) *CodeRegistry {
	return &CodeRegistry{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type BatchSpec struct {
	Count            int       `json:"count" validate:"required,min=1,max=500"`
	Subject          string    `json:"subject" validate:"required,max=100"`
	ClassLevel       string    `json:"class_level" validate:"required,max=50"`
	Term             string    `json:"term" validate:"required,max=50"`
	Session          string    `json:"session" validate:"required,max=20"`
	TestType         string    `json:"test_type" validate:"required,max=50"`
	DurationMinutes  int       `json:"duration_minutes" validate:"required,min=1,max=600"`
	QuestionCount    int       `json:"question_count" validate:"required,min=1,max=200"`
	ScorePerQuestion float64   `json:"score_per_question" validate:"required,gt=0"`
	ExpiresAt        time.Time `json:"expires_at" validate:"required"`
}

// BatchPatch lists the batch fields an admin may change after generation.
type BatchPatch struct {
	DurationMinutes  *int       `json:"duration_minutes" validate:"omitempty,min=1,max=600"`
	QuestionCount    *int       `json:"question_count" validate:"omitempty,min=1,max=200"`
	ScorePerQuestion *float64   `json:"score_per_question" validate:"omitempty,gt=0"`
	ExpiresAt        *time.Time `json:"expires_at"`
	IsActive         *bool      `json:"is_active"`
}

func (p BatchPatch) assignments(now time.Time) (map[string]any, error) {
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	set := map[string]any{}
	if p.DurationMinutes != nil {
		set["duration_minutes"] = *p.DurationMinutes
	}
	if p.QuestionCount != nil {
		set["question_count"] = *p.QuestionCount
	}
	if p.ScorePerQuestion != nil {
		set["score_per_question"] = *p.ScorePerQuestion
	}
	if p.ExpiresAt != nil {
		if !p.ExpiresAt.After(now) {
			return nil, fmt.Errorf("%w: expires_at must be in the future", ErrValidation)
		}
		set["expires_at"] = p.ExpiresAt.UTC()
	}
	if p.IsActive != nil {
		set["is_active"] = *p.IsActive
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	return set, nil
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *CodeRegistry) GenerateBatch(ctx context.Context, spec BatchSpec, createdBy uuid.UUID) ([]models.TestCode, error) {
	if err := validate.Struct(spec); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	now := r.now()
	if !spec.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", ErrValidation)
	}

	batchID := uuid.New()
	codes := make([]models.TestCode, 0, spec.Count)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken := make(map[string]struct{}, spec.Count)
		for range spec.Count {
			code, err := utils.GenerateUniqueTestCode(ctx, tx, taken)
			if err != nil {
				return err
			}
			taken[code] = struct{}{}
			codes = append(codes, models.TestCode{
				ID:               uuid.New(),
				Code:             code,
				BatchID:          batchID,
				Subject:          strings.TrimSpace(spec.Subject),
				ClassLevel:       strings.TrimSpace(spec.ClassLevel),
				Term:             strings.TrimSpace(spec.Term),
				Session:          strings.TrimSpace(spec.Session),
				TestType:         strings.TrimSpace(spec.TestType),
				DurationMinutes:  spec.DurationMinutes,
				QuestionCount:    spec.QuestionCount,
				ScorePerQuestion: spec.ScorePerQuestion,
				ExpiresAt:        spec.ExpiresAt.UTC(),
				IsActive:         true,
				IsActivated:      false,
				Status:           models.CodeStatusActive,
				CreatedBy:        createdBy,
			})
		}
		return tx.Create(&codes).Error
	})
	if err != nil {
		return nil, fmt.Errorf("generate batch: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"batch_id": batchID, "count": len(codes)}).Info("test code batch generated")
	return codes, nil
}

func (r *CodeRegistry) Lookup(ctx context.Context, code string) (*models.TestCode, error) {
	var tc models.TestCode
	err := r.db.WithContext(ctx).Where("code = ?", NormalizeCode(code)).First(&tc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup test code: %w", err)
	}
	return &tc, nil
}

func (r *CodeRegistry) ListBatch(ctx context.Context, batchID uuid.UUID) ([]models.TestCode, error) {
	var codes []models.TestCode
	if err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).Order("code").Find(&codes).Error; err != nil {
		return nil, fmt.Errorf("list batch: %w", err)
	}
	if len(codes) == 0 {
		return nil, ErrBatchNotFound
	}
	return codes, nil
}

// checkRedeemable validates a snapshot in the documented order. It is advisory;
// only the conditional update in redeemSnapshot decides the outcome.
func checkRedeemable(tc *models.TestCode, now time.Time) error {
	if !tc.IsActive {
		return ErrNotActive
	}
	if !tc.IsActivated {
		return ErrNotActivated
	}
	if tc.Expired(now) {
		return ErrExpired
	}
	switch tc.Status {
	case models.CodeStatusActive:
		return nil
	case models.CodeStatusUsing:
		return ErrAlreadyInUse
	case models.CodeStatusUsed:
		return ErrAlreadyConsumed
	}
	return fmt.Errorf("test code %s has unknown status %q", tc.Code, tc.Status)
}

// Redeem moves an active code to using for studentID.
func (r *CodeRegistry) Redeem(ctx context.Context, code string, studentID uuid.UUID) (*models.TestCode, error) {
	tc, err := r.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	return r.redeemSnapshot(ctx, tc, studentID)
}

func (r *CodeRegistry) redeemSnapshot(ctx context.Context, tc *models.TestCode, studentID uuid.UUID) (*models.TestCode, error) {
	now := r.now()
	if err := checkRedeemable(tc, now); err != nil {
		return nil, err
	}

	res := r.db.WithContext(ctx).Model(&models.TestCode{}).
		Where("id = ? AND status = ? AND is_active = ? AND is_activated = ?",
			tc.ID, models.CodeStatusActive, true, true).
		Updates(map[string]any{
			"status":     models.CodeStatusUsing,
			"used_by":    studentID,
			"used_at":    now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("redeem test code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		logger.Log.WithFields(logrus.Fields{"code": tc.Code, "student_id": studentID}).Warn("redemption lost compare-and-swap")
		return nil, ErrLostRace
	}

	redeemed := *tc
	redeemed.Status = models.CodeStatusUsing
	redeemed.UsedBy = &studentID
	redeemed.UsedAt = &now
	redeemed.UpdatedAt = now

	logger.Log.WithFields(logrus.Fields{"code": tc.Code, "student_id": studentID}).Info("test code redeemed")
	return &redeemed, nil
}

// Release reverts a redemption that never produced a paper.
func (r *CodeRegistry) Release(ctx context.Context, codeID, studentID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.TestCode{}).
		Where("id = ? AND status = ? AND used_by = ?", codeID, models.CodeStatusUsing, studentID).
		Where("NOT EXISTS (SELECT 1 FROM test_results WHERE test_results.test_code_id = test_codes.id)").
		Updates(map[string]any{
			"status":     models.CodeStatusActive,
			"used_by":    nil,
			"used_at":    nil,
			"updated_at": r.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("release test code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: code is not held by this student", ErrConflict)
	}
	logger.Log.WithFields(logrus.Fields{"test_code_id": codeID, "student_id": studentID}).Warn("test code redemption released")
	return nil
}

// Complete marks a redeemed code as used once its result is recorded.
func (r *CodeRegistry) Complete(ctx context.Context, codeID, studentID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.TestCode{}).
		Where("id = ? AND status = ? AND used_by = ?", codeID, models.CodeStatusUsing, studentID).
		Updates(map[string]any{"status": models.CodeStatusUsed, "updated_at": r.now()})
	if res.Error != nil {
		return fmt.Errorf("complete test code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: code is not in use by this student", ErrConflict)
	}
	return nil
}

func (r *CodeRegistry) ActivateBatch(ctx context.Context, batchID uuid.UUID, activate bool) (int64, error) {
	set := map[string]any{"is_activated": activate, "activated_at": nil, "updated_at": r.now()}
	if activate {
		set["activated_at"] = r.now()
	}

	q := r.db.WithContext(ctx).Model(&models.TestCode{}).Where("batch_id = ?", batchID)
	if activate {
		q = q.Where(batchHasNoResults, batchID)
	}
	res := q.Updates(set)
	if res.Error != nil {
		return 0, fmt.Errorf("activate batch: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, r.explainUntouchedBatch(ctx, batchID)
	}

	logger.Log.WithFields(logrus.Fields{"batch_id": batchID, "activated": activate, "count": res.RowsAffected}).Info("batch activation changed")
	return res.RowsAffected, nil
}

func (r *CodeRegistry) UpdateBatch(ctx context.Context, batchID uuid.UUID, patch BatchPatch) (int64, error) {
	now := r.now()
	set, err := patch.assignments(now)
	if err != nil {
		return 0, err
	}
	set["updated_at"] = now

	res := r.db.WithContext(ctx).Model(&models.TestCode{}).
		Where("batch_id = ?", batchID).
		Where(batchHasNoResults, batchID).
		Where(batchAllActive, batchID, models.CodeStatusActive).
		Updates(set)
	if res.Error != nil {
		return 0, fmt.Errorf("update batch: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, r.explainUntouchedBatch(ctx, batchID)
	}
	return res.RowsAffected, nil
}

func (r *CodeRegistry) DeleteBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Where(batchHasNoResults, batchID).
		Delete(&models.TestCode{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete batch: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, r.explainUntouchedBatch(ctx, batchID)
	}

	logger.Log.WithFields(logrus.Fields{"batch_id": batchID, "count": res.RowsAffected}).Info("batch deleted")
	return res.RowsAffected, nil
}

// explainUntouchedBatch tells a missing batch apart from a guarded one.
func (r *CodeRegistry) explainUntouchedBatch(ctx context.Context, batchID uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TestCode{}).Where("batch_id = ?", batchID).Count(&count).Error; err != nil {
		return fmt.Errorf("inspect batch: %w", err)
	}
	if count == 0 {
		return ErrBatchNotFound
	}
	return ErrBatchInUse
}

// StuckRedemptions lists codes still in using whose time window plus grace
// has elapsed without a recorded result.
func (r *CodeRegistry) StuckRedemptions(ctx context.Context, grace time.Duration) ([]models.TestCode, error) {
	var using []models.TestCode
	err := r.db.WithContext(ctx).
		Where("status = ?", models.CodeStatusUsing).
		Where("NOT EXISTS (SELECT 1 FROM test_results WHERE test_results.test_code_id = test_codes.id)").
		Find(&using).Error
	if err != nil {
		return nil, fmt.Errorf("list stuck redemptions: %w", err)
	}

	now := r.now()
	stuck := using[:0]
	for _, tc := range using {
		if tc.UsedAt == nil {
			continue
		}
		deadline := tc.UsedAt.Add(time.Duration(tc.DurationMinutes)*time.Minute + grace)
		if now.After(deadline) {
			stuck = append(stuck, tc)
		}
	}
	return stuck, nil
}
