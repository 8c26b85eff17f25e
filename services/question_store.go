package services

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/anjiri1684/school_cbt/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Shuffler applies a uniform random permutation. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// DefaultShuffler is safe for concurrent use.
var DefaultShuffler Shuffler = globalShuffler{}

type QuestionFilter struct {
	Subject    string
	ClassLevel string
	Term       string
	Session    string
	// Bucket narrows the pool to one assignment bucket; empty means all buckets.
	Bucket string
}

// FilterForCode derives the question pool of a test code.
func FilterForCode(tc *models.TestCode, policy TestTypePolicy) QuestionFilter {
	f := QuestionFilter{
		Subject:    tc.Subject,
		ClassLevel: tc.ClassLevel,
		Term:       tc.Term,
		Session:    tc.Session,
	}
	if !policy.IsAggregate(tc.TestType) {
		f.Bucket = tc.TestType
	}
	return f
}

type QuestionStore interface {
	CountEligible(ctx context.Context, f QuestionFilter) (int64, error)
	// FetchEligible returns up to limit questions in uniformly random order.
	FetchEligible(ctx context.Context, f QuestionFilter, limit int) ([]models.Question, error)
}

type GormQuestionStore struct {
	db  *gorm.DB
	rng Shuffler
}

func NewGormQuestionStore(db *gorm.DB, rng Shuffler) *GormQuestionStore {
	if rng == nil {
		rng = DefaultShuffler
	}
	return &GormQuestionStore{db: db, rng: rng}
}

func (s *GormQuestionStore) scope(ctx context.Context, f QuestionFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Question{}).
		Where("subject = ? AND class_level = ? AND term = ? AND session = ?",
			f.Subject, f.ClassLevel, f.Term, f.Session)
	if f.Bucket != "" {
		q = q.Where("LOWER(assignment_bucket) = ?", normalizeTestType(f.Bucket))
	}
	return q
}

func (s *GormQuestionStore) CountEligible(ctx context.Context, f QuestionFilter) (int64, error) {
	var count int64
	if err := s.scope(ctx, f).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

// FetchEligible permutes the eligible ids in process rather than relying on a
// dialect specific ORDER BY RANDOM().
func (s *GormQuestionStore) FetchEligible(ctx context.Context, f QuestionFilter, limit int) ([]models.Question, error) {
	if limit <= 0 {
		return nil, nil
	}

	var ids []uuid.UUID
	if err := s.scope(ctx, f).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list question ids: %w", err)
	}
	s.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []models.Question
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	byID := make(map[uuid.UUID]models.Question, len(rows))
	for _, q := range rows {
		byID[q.ID] = q
	}
	ordered := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}
