package domain

import (
	"fmt"
	"strings"
)

// OptionCount is the fixed number of options every question carries.
const OptionCount = 4

// Question is an immutable multiple-choice question as supplied by the question source.
type Question struct {
	ID                  string   `json:"id" yaml:"id"`
	QuestionNumber      int      `json:"questionNumber" yaml:"number"`
	Text                string   `json:"text" yaml:"text"`
	Options             []string `json:"options" yaml:"options"`
	CorrectOptionLetter string   `json:"correctOptionLetter" yaml:"answer"`
}

// CorrectOptionText resolves the answer letter (A-D) to the option text it points at.
func (q Question) CorrectOptionText() (string, error) {
	if len(q.Options) != OptionCount {
		return "", fmt.Errorf("%w: question %s has %d options", ErrInvalidQuestion, q.ID, len(q.Options))
	}
	idx, ok := LetterIndex(q.CorrectOptionLetter)
	if !ok {
		return "", fmt.Errorf("%w: question %s has answer letter %q", ErrInvalidQuestion, q.ID, q.CorrectOptionLetter)
	}
	return q.Options[idx], nil
}

// LetterIndex maps A|B|C|D (case-insensitive) to 0..3.
func LetterIndex(letter string) (int, bool) {
	l := strings.ToUpper(strings.TrimSpace(letter))
	if len(l) != 1 || l[0] < 'A' || l[0] >= 'A'+OptionCount {
		return 0, false
	}
	return int(l[0] - 'A'), true
}

// QuestionView is a question as shown to the candidate, without the answer key.
type QuestionView struct {
	ID             string   `json:"id"`
	QuestionNumber int      `json:"questionNumber"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
}
