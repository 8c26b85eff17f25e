package utils

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/anjiri1684/school_cbt/models"
	"gorm.io/gorm"
)

const TestCodeLength = 8
const letterBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const maxCodeAttempts = 32

var ErrCodeSpaceExhausted = errors.New("could not generate a unique test code")

func randomCode() string {
	b := make([]byte, TestCodeLength)
	for i := range b {
		b[i] = letterBytes[rand.IntN(len(letterBytes))]
	}
	return string(b)
}

// GenerateUniqueTestCode returns a code that is neither stored in tx nor in taken.
// taken lets a caller reserve codes for rows it has not inserted yet.
func GenerateUniqueTestCode(ctx context.Context, tx *gorm.DB, taken map[string]struct{}) (string, error) {
	for range maxCodeAttempts {
		code := randomCode()
		if _, dup := taken[code]; dup {
			continue
		}

		var count int64
		err := tx.WithContext(ctx).Model(&models.TestCode{}).Where("code = ?", code).Count(&count).Error
		if err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}
