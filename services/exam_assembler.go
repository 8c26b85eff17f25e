package services

import (
	"context"
	"fmt"
)

// AnswerKey maps question id to the correct letter after shuffling.
type AnswerKey map[string]string

// ExamAssignment is one issued paper: the questions in delivered order with
// their relabeled options, and the private key for grading them.
type ExamAssignment struct {
	Questions []DeliveredQuestion `json:"questions"`
	Key       AnswerKey           `json:"key"`
}

type ExamAssembler struct {
	store QuestionStore
	rng   Shuffler
}

func NewExamAssembler(store QuestionStore, rng Shuffler) *ExamAssembler {
	if rng == nil {
		rng = DefaultShuffler
	}
	return &ExamAssembler{store: store, rng: rng}
}

// EnsureAvailable fails with ErrInsufficientQuestions when the pool is smaller than n.
func (a *ExamAssembler) EnsureAvailable(ctx context.Context, f QuestionFilter, n int) error {
	available, err := a.store.CountEligible(ctx, f)
	if err != nil {
		return err
	}
	if available < int64(n) {
		return fmt.Errorf("%w: %d requested, %d available", ErrInsufficientQuestions, n, available)
	}
	return nil
}

func (a *ExamAssembler) Assemble(ctx context.Context, f QuestionFilter, n int) (*ExamAssignment, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: question count must be positive", ErrValidation)
	}

	questions, err := a.store.FetchEligible(ctx, f, n)
	if err != nil {
		return nil, err
	}
	if len(questions) < n {
		return nil, fmt.Errorf("%w: %d requested, %d available", ErrInsufficientQuestions, n, len(questions))
	}

	out := &ExamAssignment{
		Questions: make([]DeliveredQuestion, 0, n),
		Key:       make(AnswerKey, n),
	}
	for _, q := range questions[:n] {
		dq, label, err := ShuffleQuestion(q, a.rng)
		if err != nil {
			return nil, err
		}
		out.Questions = append(out.Questions, dq)
		out.Key[q.ID.String()] = label
	}
	return out, nil
}
