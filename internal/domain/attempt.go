package domain

import (
	"sort"
	"time"
)

// QuestionStatus tracks how the candidate has treated a question.
type QuestionStatus string

const (
	StatusNotVisited     QuestionStatus = "not-visited"
	StatusNotAnswered    QuestionStatus = "not-answered"
	StatusAnswered       QuestionStatus = "answered"
	StatusReview         QuestionStatus = "review"
	StatusAnsweredMarked QuestionStatus = "answered-marked"
)

// IsAnswered reports whether the status carries a selected option.
func (s QuestionStatus) IsAnswered() bool {
	return s == StatusAnswered || s == StatusAnsweredMarked
}

// Phase is the lifecycle position of an attempt.
type Phase string

const (
	PhaseInProgress       Phase = "in-progress"
	PhaseConfirmingSubmit Phase = "confirming-submit"
	PhaseSubmitted        Phase = "submitted"
)

// Result is the pass/fail verdict of a submitted attempt.
type Result string

const (
	ResultPass Result = "PASS"
	ResultFail Result = "FAIL"
)

// PassPercentage is the fixed pass threshold.
const PassPercentage = 40.0

// AttemptSummary is the scored outcome handed to the result sink.
type AttemptSummary struct {
	AttemptID        string    `json:"attemptId"`
	UserID           string    `json:"userId,omitempty"`
	Group            string    `json:"group,omitempty"`
	Test             string    `json:"test,omitempty"`
	Score            int       `json:"score"`
	QuestionCount    int       `json:"questionCount"`
	Attempted        int       `json:"attempted"`
	NotAttempted     int       `json:"notAttempted"`
	Percentage       float64   `json:"percentage"`
	Result           Result    `json:"result"`
	TimeTakenSeconds int       `json:"timeTakenSeconds"`
	StartedAt        time.Time `json:"startedAt"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

// ResponseRecord is the per-question detail handed to the response sink.
type ResponseRecord struct {
	AttemptID      string         `json:"attemptId"`
	QuestionID     string         `json:"questionId"`
	QuestionNumber int            `json:"questionNumber"`
	SelectedOption string         `json:"selectedOption,omitempty"`
	CorrectOption  string         `json:"correctOption"`
	Correct        bool           `json:"correct"`
	Status         QuestionStatus `json:"status"`
	AnsweredAt     *time.Time     `json:"answeredAt,omitempty"`
	SubmittedAt    time.Time      `json:"submittedAt"`
}

// StatusCounts is the question palette legend.
type StatusCounts struct {
	NotVisited     int `json:"notVisited"`
	NotAnswered    int `json:"notAnswered"`
	Answered       int `json:"answered"`
	Review         int `json:"review"`
	AnsweredMarked int `json:"answeredMarked"`
}

// AttemptView is a point-in-time copy of an attempt for rendering.
type AttemptView struct {
	AttemptID        string           `json:"attemptId"`
	Phase            Phase            `json:"phase"`
	CurrentIndex     int              `json:"currentIndex"`
	QuestionCount    int              `json:"questionCount"`
	Current          QuestionView     `json:"current"`
	SelectedOption   string           `json:"selectedOption,omitempty"`
	Statuses         []QuestionStatus `json:"statuses"`
	Counts           StatusCounts     `json:"counts"`
	RemainingSeconds int              `json:"remainingSeconds"`
	StartedAt        time.Time        `json:"startedAt"`
}

// ReviewRow is one question of the post-submission report.
type ReviewRow struct {
	QuestionNumber int            `json:"questionNumber"`
	Text           string         `json:"text"`
	Options        []string       `json:"options"`
	SelectedOption string         `json:"selectedOption,omitempty"`
	CorrectOption  string         `json:"correctOption"`
	Correct        bool           `json:"correct"`
	Status         QuestionStatus `json:"status"`
}

// Report is the read-only summary view shown after submission.
type Report struct {
	Summary AttemptSummary `json:"summary"`
	Rows    []ReviewRow    `json:"rows"`
}

// LeaderboardEntry is one ranked result for a group/test pair.
type LeaderboardEntry struct {
	AttemptID        string    `json:"attemptId"`
	UserID           string    `json:"userId"`
	Score            int       `json:"score"`
	Percentage       float64   `json:"percentage"`
	TimeTakenSeconds int       `json:"timeTakenSeconds"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

// Leaderboard is the ordered scoreboard for a group/test pair.
type Leaderboard struct {
	Group   string             `json:"group"`
	Test    string             `json:"test"`
	Entries []LeaderboardEntry `json:"entries"`
}

// SortLeaderboard orders entries by score, then faster finishers, then earlier
// submissions, then user id.
func SortLeaderboard(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TimeTakenSeconds != b.TimeTakenSeconds {
			return a.TimeTakenSeconds < b.TimeTakenSeconds
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.UserID < b.UserID
	})
}
