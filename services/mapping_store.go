package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anjiri1684/school_cbt/models"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MappingStore keeps the paper issued for a redemption, with its answer key,
// per (test code, student). Put overwrites; the exam service only writes once
// per redemption so every delivery of that redemption returns the same paper.
type MappingStore interface {
	Put(ctx context.Context, testID, studentID uuid.UUID, paper *ExamAssignment, expiresAt time.Time) error
	Get(ctx context.Context, testID, studentID uuid.UUID) (*ExamAssignment, error)
	Delete(ctx context.Context, testID, studentID uuid.UUID) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

const minMappingTTL = time.Minute

type RedisMappingStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisMappingStore(client *redis.Client) *RedisMappingStore {
	return &RedisMappingStore{client: client, prefix: "cbt:answer-key", now: time.Now}
}

func (s *RedisMappingStore) key(testID, studentID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, testID, studentID)
}

func (s *RedisMappingStore) Put(ctx context.Context, testID, studentID uuid.UUID, paper *ExamAssignment, expiresAt time.Time) error {
	buf, err := sonic.Marshal(paper)
	if err != nil {
		return fmt.Errorf("encode answer key: %w", err)
	}
	ttl := expiresAt.Sub(s.now())
	if ttl < minMappingTTL {
		ttl = minMappingTTL
	}
	if err := s.client.Set(ctx, s.key(testID, studentID), buf, ttl).Err(); err != nil {
		return fmt.Errorf("store answer key: %w", err)
	}
	return nil
}

func (s *RedisMappingStore) Get(ctx context.Context, testID, studentID uuid.UUID) (*ExamAssignment, error) {
	buf, err := s.client.Get(ctx, s.key(testID, studentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("load answer key: %w", err)
	}
	var paper ExamAssignment
	if err := sonic.Unmarshal(buf, &paper); err != nil {
		return nil, fmt.Errorf("decode answer key: %w", err)
	}
	return &paper, nil
}

func (s *RedisMappingStore) Delete(ctx context.Context, testID, studentID uuid.UUID) error {
	return s.client.Del(ctx, s.key(testID, studentID)).Err()
}

// PurgeExpired is a no-op: redis expires keys by TTL.
func (s *RedisMappingStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type GormMappingStore struct {
	db *gorm.DB
}

func NewGormMappingStore(db *gorm.DB) *GormMappingStore {
	return &GormMappingStore{db: db}
}

func (s *GormMappingStore) Put(ctx context.Context, testID, studentID uuid.UUID, paper *ExamAssignment, expiresAt time.Time) error {
	m := make(datatypes.JSONMap, len(paper.Key))
	for q, label := range paper.Key {
		m[q] = label
	}
	questions, err := sonic.Marshal(paper.Questions)
	if err != nil {
		return fmt.Errorf("encode paper: %w", err)
	}
	row := models.AnswerMapping{
		TestCodeID: testID,
		StudentID:  studentID,
		Mapping:    m,
		Questions:  datatypes.JSON(questions),
		ExpiresAt:  expiresAt.UTC(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "test_code_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"mapping", "questions", "expires_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("store answer key: %w", err)
	}
	return nil
}

func (s *GormMappingStore) Get(ctx context.Context, testID, studentID uuid.UUID) (*ExamAssignment, error) {
	var row models.AnswerMapping
	err := s.db.WithContext(ctx).
		Where("test_code_id = ? AND student_id = ?", testID, studentID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("load answer key: %w", err)
	}

	key := make(AnswerKey, len(row.Mapping))
	for q, v := range row.Mapping {
		label, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("answer key for question %s is %T", q, v)
		}
		key[q] = label
	}

	paper := &ExamAssignment{Key: key}
	if len(row.Questions) > 0 {
		if err := sonic.Unmarshal(row.Questions, &paper.Questions); err != nil {
			return nil, fmt.Errorf("decode paper: %w", err)
		}
	}
	return paper, nil
}

func (s *GormMappingStore) Delete(ctx context.Context, testID, studentID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("test_code_id = ? AND student_id = ?", testID, studentID).
		Delete(&models.AnswerMapping{}).Error
}

// PurgeExpired drops keys past their lifetime and keys whose code is no longer
// held in using (completed, released or deleted).
func (s *GormMappingStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Or("NOT EXISTS (SELECT 1 FROM test_codes WHERE test_codes.id = answer_mappings.test_code_id AND test_codes.status = ?)",
			models.CodeStatusUsing).
		Delete(&models.AnswerMapping{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge answer keys: %w", res.Error)
	}
	return res.RowsAffected, nil
}
