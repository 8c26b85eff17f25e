package services

import (
	"context"
	"testing"
	"time"

	"github.com/anjiri1684/school_cbt/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestTypePolicy(t *testing.T) {
	p := NewTestTypePolicy([]string{" Examination ", ""})
	assert.True(t, p.IsAggregate("examination"))
	assert.True(t, p.IsAggregate("Examination"))
	assert.False(t, p.IsAggregate("First CA"))
	assert.False(t, p.IsAggregate(""))
}

func TestDuplicateGuard(t *testing.T) {
	student := uuid.New()

	cases := []struct {
		name     string
		prior    func(*models.TestCode)
		priorFor uuid.UUID
		target   func(*models.TestCode)
		wantErr  bool
	}{
		{
			name:    "no history",
			target:  func(tc *models.TestCode) {},
			wantErr: false,
		},
		{
			name:     "same bucket on another code",
			prior:    func(tc *models.TestCode) { tc.Code = "OLDCA1" },
			priorFor: student,
			target:   func(tc *models.TestCode) {},
			wantErr:  true,
		},
		{
			name:     "bucket compared case-insensitively",
			prior:    func(tc *models.TestCode) { tc.Code = "OLDCA1" },
			priorFor: student,
			target:   func(tc *models.TestCode) { tc.TestType = " first ca" },
			wantErr:  true,
		},
		{
			name:     "different bucket",
			prior:    func(tc *models.TestCode) { tc.Code = "OLDCA1" },
			priorFor: student,
			target:   func(tc *models.TestCode) { tc.TestType = "Second CA" },
			wantErr:  false,
		},
		{
			name:     "aggregate collides with any bucket",
			prior:    func(tc *models.TestCode) { tc.Code = "OLDCA1" },
			priorFor: student,
			target:   func(tc *models.TestCode) { tc.TestType = "Examination" },
			wantErr:  true,
		},
		{
			name:     "another student's history",
			prior:    func(tc *models.TestCode) { tc.Code = "OLDCA1" },
			priorFor: uuid.New(),
			target:   func(tc *models.TestCode) {},
			wantErr:  false,
		},
		{
			name:     "different subject",
			prior:    func(tc *models.TestCode) { tc.Code = "OLDCA1"; tc.Subject = "English" },
			priorFor: student,
			target:   func(tc *models.TestCode) {},
			wantErr:  false,
		},
		{
			name:     "different term",
			prior:    func(tc *models.TestCode) { tc.Code = "OLDCA1"; tc.Term = "Second Term" },
			priorFor: student,
			target:   func(tc *models.TestCode) { tc.TestType = "Examination" },
			wantErr:  false,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			guard := NewDuplicateGuard(db, NewTestTypePolicy([]string{"Examination"}))

			if tt.prior != nil {
				prior := seedCode(t, db, tt.prior)
				seedResult(t, db, prior.ID, tt.priorFor)
			}
			target := seedCode(t, db, func(tc *models.TestCode) {
				tc.Code = "NEWTST"
				tt.target(tc)
			})

			err := guard.Check(context.Background(), student, target)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDuplicateAttempt)
				assert.ErrorIs(t, err, ErrConflict)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDuplicateGuard_SameCode(t *testing.T) {
	db := setupTestDB(t)
	guard := NewDuplicateGuard(db, NewTestTypePolicy(nil))
	student := uuid.New()
	tc := seedCode(t, db, nil)

	done, err := guard.HasResult(context.Background(), tc.ID, student)
	require.NoError(t, err)
	assert.False(t, done)

	seedResult(t, db, tc.ID, student)

	done, err = guard.HasResult(context.Background(), tc.ID, student)
	require.NoError(t, err)
	assert.True(t, done)
	assert.ErrorIs(t, guard.Check(context.Background(), student, tc), ErrDuplicateAttempt)
}

func TestDuplicateGuard_OpenAttempt(t *testing.T) {
	student := uuid.New()

	cases := []struct {
		name    string
		held    func(*models.TestCode)
		target  string
		wantErr bool
	}{
		{"same bucket", func(tc *models.TestCode) {}, "First CA", true},
		{"same bucket other case", func(tc *models.TestCode) {}, "FIRST CA", true},
		{"aggregate over open bucket", func(tc *models.TestCode) {}, "Examination", true},
		{"different bucket", func(tc *models.TestCode) {}, "Second CA", false},
		{"held by another student", func(tc *models.TestCode) { other := uuid.New(); tc.UsedBy = &other }, "First CA", false},
		{"held code already finished", func(tc *models.TestCode) { tc.Status = models.CodeStatusUsed }, "First CA", false},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			guard := NewDuplicateGuard(db, NewTestTypePolicy([]string{"Examination"}))
			now := time.Now().UTC()

			seedCode(t, db, func(tc *models.TestCode) {
				tc.Code = "HELD01"
				tc.Status = models.CodeStatusUsing
				tc.UsedBy = &student
				tc.UsedAt = &now
				tt.held(tc)
			})
			target := seedCode(t, db, func(tc *models.TestCode) {
				tc.Code = "NEWTST"
				tc.TestType = tt.target
			})

			err := guard.Check(context.Background(), student, target)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrAttemptInProgress)
				assert.ErrorIs(t, err, ErrConflict)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDuplicateGuard_IgnoresTheCodeBeingRedeemed(t *testing.T) {
	db := setupTestDB(t)
	guard := NewDuplicateGuard(db, NewTestTypePolicy(nil))
	student := uuid.New()
	now := time.Now().UTC()

	tc := seedCode(t, db, func(tc *models.TestCode) {
		tc.Status = models.CodeStatusUsing
		tc.UsedBy = &student
		tc.UsedAt = &now
	})
	assert.NoError(t, guard.Check(context.Background(), student, tc))
}
