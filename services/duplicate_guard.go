package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/anjiri1684/school_cbt/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TestTypePolicy knows which test types are aggregate categories (for example
// "Examination") rather than specific buckets such as "First CA".
type TestTypePolicy struct {
	aggregate map[string]struct{}
}

func NewTestTypePolicy(aggregate []string) TestTypePolicy {
	p := TestTypePolicy{aggregate: make(map[string]struct{}, len(aggregate))}
	for _, t := range aggregate {
		if t = normalizeTestType(t); t != "" {
			p.aggregate[t] = struct{}{}
		}
	}
	return p
}

func (p TestTypePolicy) IsAggregate(testType string) bool {
	_, ok := p.aggregate[normalizeTestType(testType)]
	return ok
}

func normalizeTestType(testType string) string {
	return strings.ToLower(strings.TrimSpace(testType))
}

// DuplicateGuard decides whether a student may still redeem a code.
type DuplicateGuard struct {
	db     *gorm.DB
	policy TestTypePolicy
}

func NewDuplicateGuard(db *gorm.DB, policy TestTypePolicy) *DuplicateGuard {
	return &DuplicateGuard{db: db, policy: policy}
}

// Check rejects a student who already completed this code, or any code in the
// same subject, class level and term, or who is still sitting such a code.
// Specific buckets only collide with the same bucket; aggregate types collide
// with every prior attempt in scope. Test types compare case-insensitively.
func (g *DuplicateGuard) Check(ctx context.Context, studentID uuid.UUID, tc *models.TestCode) error {
	done, err := g.HasResult(ctx, tc.ID, studentID)
	if err != nil {
		return err
	}
	if done {
		return ErrDuplicateAttempt
	}

	var count int64
	err = g.inScope(ctx, tc).
		Model(&models.TestResult{}).
		Joins("JOIN test_codes ON test_codes.id = test_results.test_code_id").
		Where("test_results.student_id = ?", studentID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check prior attempts: %w", err)
	}
	if count > 0 {
		return ErrDuplicateAttempt
	}

	err = g.inScope(ctx, tc).
		Model(&models.TestCode{}).
		Where("test_codes.id <> ? AND test_codes.used_by = ? AND test_codes.status = ?",
			tc.ID, studentID, models.CodeStatusUsing).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check open attempts: %w", err)
	}
	if count > 0 {
		return ErrAttemptInProgress
	}
	return nil
}

// inScope restricts test_codes to the duplicate scope of tc.
func (g *DuplicateGuard) inScope(ctx context.Context, tc *models.TestCode) *gorm.DB {
	q := g.db.WithContext(ctx).
		Where("test_codes.subject = ? AND test_codes.class_level = ? AND test_codes.term = ?",
			tc.Subject, tc.ClassLevel, tc.Term)
	if !g.policy.IsAggregate(tc.TestType) {
		q = q.Where("LOWER(test_codes.test_type) = ?", normalizeTestType(tc.TestType))
	}
	return q
}

func (g *DuplicateGuard) HasResult(ctx context.Context, codeID, studentID uuid.UUID) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.TestResult{}).
		Where("test_code_id = ? AND student_id = ?", codeID, studentID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check test result: %w", err)
	}
	return count > 0, nil
}
