package exam

import (
	"fmt"

	"exam-session-service/internal/domain"
)

// View returns a copy of the attempt for rendering. The answer key is never included.
func (c *Controller) View() domain.AttemptView {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.questions[c.current]
	statuses := make([]domain.QuestionStatus, len(c.status))
	copy(statuses, c.status)

	return domain.AttemptView{
		AttemptID:     c.attemptID,
		Phase:         c.phase,
		CurrentIndex:  c.current,
		QuestionCount: len(c.questions),
		Current: domain.QuestionView{
			ID:             q.ID,
			QuestionNumber: q.QuestionNumber,
			Text:           q.Text,
			Options:        append([]string(nil), q.Options...),
		},
		SelectedOption:   c.selected[c.current],
		Statuses:         statuses,
		Counts:           countStatuses(statuses),
		RemainingSeconds: c.remaining,
		StartedAt:        c.startedAt,
	}
}

// Report returns the summary with a per-question review. Only available after submission.
func (c *Controller) Report() (domain.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary == nil {
		return domain.Report{}, domain.ErrNotSubmitted
	}

	rows := make([]domain.ReviewRow, len(c.records))
	for i, rec := range c.records {
		q := c.questions[i]
		rows[i] = domain.ReviewRow{
			QuestionNumber: q.QuestionNumber,
			Text:           q.Text,
			Options:        append([]string(nil), q.Options...),
			SelectedOption: rec.SelectedOption,
			CorrectOption:  rec.CorrectOption,
			Correct:        rec.Correct,
			Status:         rec.Status,
		}
	}
	return domain.Report{Summary: *c.summary, Rows: rows}, nil
}

func countStatuses(statuses []domain.QuestionStatus) domain.StatusCounts {
	var counts domain.StatusCounts
	for _, s := range statuses {
		switch s {
		case domain.StatusNotVisited:
			counts.NotVisited++
		case domain.StatusNotAnswered:
			counts.NotAnswered++
		case domain.StatusAnswered:
			counts.Answered++
		case domain.StatusReview:
			counts.Review++
		case domain.StatusAnsweredMarked:
			counts.AnsweredMarked++
		}
	}
	return counts
}

// FormatClock renders seconds as HH:MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}
