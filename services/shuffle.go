package services

import (
	"fmt"
	"strings"

	"github.com/anjiri1684/school_cbt/models"
	"github.com/google/uuid"
)

var optionLetters = [4]string{"A", "B", "C", "D"}

// DeliveredQuestion is what a student sees. It never carries the answer.
type DeliveredQuestion struct {
	ID           uuid.UUID `json:"id"`
	QuestionText string    `json:"question_text"`
	QuestionType string    `json:"question_type"`
	OptionA      *string   `json:"option_a"`
	OptionB      *string   `json:"option_b"`
	OptionC      *string   `json:"option_c"`
	OptionD      *string   `json:"option_d"`
}

func letterIndex(letter string) int {
	switch strings.ToUpper(strings.TrimSpace(letter)) {
	case "A":
		return 0
	case "B":
		return 1
	case "C":
		return 2
	case "D":
		return 3
	}
	return -1
}

// ShuffleQuestion permutes the populated options of q, relabels them A..D in
// order and returns the letter that now holds the original correct value.
func ShuffleQuestion(q models.Question, rng Shuffler) (DeliveredQuestion, string, error) {
	slots := q.Options()

	idx := letterIndex(q.CorrectAnswer)
	if idx < 0 {
		return DeliveredQuestion{}, "", fmt.Errorf("%w: question %s has correct answer %q", ErrMalformedQuestion, q.ID, q.CorrectAnswer)
	}
	correct := slots[idx]
	if strings.TrimSpace(correct) == "" {
		return DeliveredQuestion{}, "", fmt.Errorf("%w: question %s marks an empty option as correct", ErrMalformedQuestion, q.ID)
	}

	values := make([]string, 0, len(slots))
	for _, v := range slots {
		if strings.TrimSpace(v) != "" {
			values = append(values, v)
		}
	}
	switch {
	case q.QuestionType == models.QuestionTypeTrueFalse && len(values) != 2:
		return DeliveredQuestion{}, "", fmt.Errorf("%w: true/false question %s has %d options", ErrMalformedQuestion, q.ID, len(values))
	case len(values) < 2:
		return DeliveredQuestion{}, "", fmt.Errorf("%w: question %s has fewer than two options", ErrMalformedQuestion, q.ID)
	}

	rng.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })

	var relabeled [4]*string
	label := ""
	for i := range values {
		relabeled[i] = &values[i]
		if values[i] != correct {
			continue
		}
		if label != "" {
			return DeliveredQuestion{}, "", fmt.Errorf("%w: question %s repeats its correct option text", ErrMalformedQuestion, q.ID)
		}
		label = optionLetters[i]
	}

	return DeliveredQuestion{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		OptionA:      relabeled[0],
		OptionB:      relabeled[1],
		OptionC:      relabeled[2],
		OptionD:      relabeled[3],
	}, label, nil
}
