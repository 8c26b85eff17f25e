package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anjiri1684/school_cbt/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisStore(t *testing.T) (*RedisMappingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisMappingStore(client), mr
}

func paperWithKey(key AnswerKey) *ExamAssignment {
	return &ExamAssignment{Key: key}
}

func exerciseMappingStore(t *testing.T, store MappingStore) {
	ctx := context.Background()
	testID, studentID := uuid.New(), uuid.New()
	expires := time.Now().UTC().Add(time.Hour)

	_, err := store.Get(ctx, testID, studentID)
	assert.ErrorIs(t, err, ErrMappingNotFound)

	optA, optB := "four", "five"
	first := &ExamAssignment{
		Questions: []DeliveredQuestion{{
			ID:           uuid.New(),
			QuestionText: "2 + 2",
			QuestionType: "multiple_choice",
			OptionA:      &optB,
			OptionB:      &optA,
		}},
		Key: AnswerKey{"q1": "B"},
	}
	require.NoError(t, store.Put(ctx, testID, studentID, first, expires))
	got, err := store.Get(ctx, testID, studentID)
	require.NoError(t, err)
	assert.Equal(t, first.Key, got.Key)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, first.Questions[0].ID, got.Questions[0].ID)
	assert.Equal(t, "five", *got.Questions[0].OptionA)
	assert.Equal(t, "four", *got.Questions[0].OptionB)
	assert.Nil(t, got.Questions[0].OptionC)

	second := paperWithKey(AnswerKey{"q1": "D", "q3": "B"})
	require.NoError(t, store.Put(ctx, testID, studentID, second, expires))
	got, err = store.Get(ctx, testID, studentID)
	require.NoError(t, err)
	assert.Equal(t, second.Key, got.Key)
	assert.Empty(t, got.Questions)

	_, err = store.Get(ctx, testID, uuid.New())
	assert.ErrorIs(t, err, ErrMappingNotFound)

	require.NoError(t, store.Delete(ctx, testID, studentID))
	_, err = store.Get(ctx, testID, studentID)
	assert.ErrorIs(t, err, ErrMappingNotFound)
}

func TestRedisMappingStore(t *testing.T) {
	store, _ := newMiniRedisStore(t)
	exerciseMappingStore(t, store)
}

func TestRedisMappingStore_ExpiresByTTL(t *testing.T) {
	store, mr := newMiniRedisStore(t)
	ctx := context.Background()
	testID, studentID := uuid.New(), uuid.New()

	require.NoError(t, store.Put(ctx, testID, studentID, paperWithKey(AnswerKey{"q": "B"}), time.Now().Add(10*time.Minute)))
	ttl := mr.TTL(store.key(testID, studentID))
	assert.Greater(t, ttl, 9*time.Minute)
	assert.LessOrEqual(t, ttl, 10*time.Minute)

	mr.FastForward(11 * time.Minute)
	_, err := store.Get(ctx, testID, studentID)
	assert.ErrorIs(t, err, ErrMappingNotFound)
}

func TestRedisMappingStore_PastExpiryKeepsFloor(t *testing.T) {
	store, mr := newMiniRedisStore(t)
	testID, studentID := uuid.New(), uuid.New()

	require.NoError(t, store.Put(context.Background(), testID, studentID, paperWithKey(AnswerKey{"q": "A"}), time.Now().Add(-time.Hour)))
	assert.Equal(t, minMappingTTL, mr.TTL(store.key(testID, studentID)))
}

func TestGormMappingStore(t *testing.T) {
	exerciseMappingStore(t, NewGormMappingStore(setupTestDB(t)))
}

func TestGormMappingStore_PurgeExpired(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormMappingStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	held := seedCode(t, db, func(tc *models.TestCode) {
		tc.Code = "HELD01"
		tc.Status = models.CodeStatusUsing
	})
	done := seedCode(t, db, func(tc *models.TestCode) {
		tc.Code = "DONE01"
		tc.Status = models.CodeStatusUsed
	})

	live, stale, orphan, finished := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, store.Put(ctx, held.ID, live, paperWithKey(AnswerKey{"q": "A"}), now.Add(time.Hour)))
	require.NoError(t, store.Put(ctx, held.ID, stale, paperWithKey(AnswerKey{"q": "B"}), now.Add(-time.Hour)))
	require.NoError(t, store.Put(ctx, uuid.New(), orphan, paperWithKey(AnswerKey{"q": "C"}), now.Add(time.Hour)))
	require.NoError(t, store.Put(ctx, done.ID, finished, paperWithKey(AnswerKey{"q": "D"}), now.Add(time.Hour)))

	purged, err := store.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, purged)

	_, err = store.Get(ctx, held.ID, live)
	assert.NoError(t, err)
	_, err = store.Get(ctx, held.ID, stale)
	assert.ErrorIs(t, err, ErrMappingNotFound)
}
