package services

import "errors"

// Error classes. Handlers map these to responses with errors.Is.
var (
	ErrNotFound              = errors.New("test code not found")
	ErrInvalidState          = errors.New("test code is not available")
	ErrExpired               = errors.New("test code has expired")
	ErrAlreadyInUse          = errors.New("test code is already in use")
	ErrAlreadyConsumed       = errors.New("test code has already been used")
	ErrConflict              = errors.New("conflict")
	ErrInsufficientQuestions = errors.New("not enough questions available for this test")
	ErrForbidden             = errors.New("test code belongs to another student")
	ErrValidation            = errors.New("validation failed")
)

// classedError carries its own message but matches its class with errors.Is.
type classedError struct {
	class error
	msg   string
}

func (e *classedError) Error() string { return e.msg }
func (e *classedError) Unwrap() error { return e.class }

func refine(class error, msg string) error {
	return &classedError{class: class, msg: msg}
}

var (
	ErrNotActive         = refine(ErrInvalidState, "test code has been disabled")
	ErrNotActivated      = refine(ErrInvalidState, "test code has not been activated yet")
	ErrNotRedeemed       = refine(ErrInvalidState, "test code has not been redeemed")
	ErrLostRace          = refine(ErrConflict, "test code was just redeemed by another request")
	ErrDuplicateAttempt  = refine(ErrConflict, "you have already taken this test")
	ErrAttemptInProgress = refine(ErrConflict, "you already have this test in progress")
	ErrBatchInUse        = refine(ErrConflict, "batch has already been used")
	ErrBatchNotFound     = errors.New("batch not found")
	ErrMappingNotFound   = errors.New("answer mapping not found")
)

// ErrMalformedQuestion reports question rows that cannot be shuffled safely.
var ErrMalformedQuestion = errors.New("malformed question")
