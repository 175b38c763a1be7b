package domain

import "errors"

var (
	// ErrNoQuestions is returned when an attempt would start with an empty question list.
	ErrNoQuestions = errors.New("no questions available")
	// ErrQuestionsNotFound indicates the question source has nothing for a group/test pair.
	ErrQuestionsNotFound = errors.New("questions not found")
	// ErrInvalidQuestion indicates a question record cannot be used (bad options or answer letter).
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrAttemptNotFound is returned when an attempt id is unknown or already discarded.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptSubmitted is returned for any mutation after submission.
	ErrAttemptSubmitted = errors.New("attempt already submitted")
	// ErrNotInProgress is returned when an operation needs the in-progress phase.
	ErrNotInProgress = errors.New("attempt is not in progress")
	// ErrNotConfirming is returned by submit and cancel when no submission is pending.
	ErrNotConfirming = errors.New("no submission pending confirmation")
	// ErrNotSubmitted is returned when a report is requested before submission.
	ErrNotSubmitted = errors.New("attempt not submitted yet")
	// ErrIndexOutOfRange marks a navigation request outside the question list.
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrNoAttemptsLeft indicates the user has used up their paid attempts.
	ErrNoAttemptsLeft = errors.New("no attempts left")
)
