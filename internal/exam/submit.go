package exam

import (
	"context"
	"errors"
	"fmt"
	"math"

	"exam-session-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

// submitLocked scores the attempt, freezes it and hands the results to the sinks
// in the background. Callers must hold mu and have checked the phase.
func (c *Controller) submitLocked() domain.AttemptSummary {
	c.stopTimerLocked()

	c.submittedAt = c.now()
	summary := c.scoreLocked()
	c.records = c.responsesLocked()
	c.phase = domain.PhaseSubmitted
	c.summary = &summary

	c.log.Info().
		Int("score", summary.Score).
		Int("question_count", summary.QuestionCount).
		Float64("percentage", summary.Percentage).
		Str("result", string(summary.Result)).
		Int("time_taken_seconds", summary.TimeTakenSeconds).
		Msg("attempt submitted")

	c.broadcastLocked(Event{Type: EventSubmitted, RemainingSeconds: c.remaining, Summary: &summary})

	c.persistDone = make(chan struct{})
	records := make([]domain.ResponseRecord, len(c.records))
	copy(records, c.records)
	go c.persist(summary, records, c.persistDone)

	return summary
}

func (c *Controller) scoreLocked() domain.AttemptSummary {
	count := len(c.questions)
	score, attempted := 0, 0
	for i, q := range c.questions {
		if sel, ok := c.selected[i]; ok && sel == q.correct {
			score++
		}
		if c.status[i].IsAnswered() {
			attempted++
		}
	}

	result := domain.ResultFail
	if Passed(score, count) {
		result = domain.ResultPass
	}

	return domain.AttemptSummary{
		AttemptID:        c.attemptID,
		UserID:           c.cfg.UserID,
		Group:            c.cfg.Group,
		Test:             c.cfg.Test,
		Score:            score,
		QuestionCount:    count,
		Attempted:        attempted,
		NotAttempted:     count - attempted,
		Percentage:       Percentage(score, count),
		Result:           result,
		TimeTakenSeconds: c.total - c.remaining,
		StartedAt:        c.startedAt,
		SubmittedAt:      c.submittedAt,
	}
}

func (c *Controller) responsesLocked() []domain.ResponseRecord {
	records := make([]domain.ResponseRecord, len(c.questions))
	for i, q := range c.questions {
		sel, answered := c.selected[i]
		rec := domain.ResponseRecord{
			AttemptID:      c.attemptID,
			QuestionID:     q.ID,
			QuestionNumber: q.QuestionNumber,
			SelectedOption: sel,
			CorrectOption:  q.correct,
			Correct:        answered && sel == q.correct,
			Status:         c.status[i],
			SubmittedAt:    c.submittedAt,
		}
		if at, ok := c.answeredAt[i]; ok {
			at := at
			rec.AnsweredAt = &at
		}
		records[i] = rec
	}
	return records
}

// Percentage returns score/count as a percentage rounded to one decimal place.
func Percentage(score, count int) float64 {
	if count == 0 {
		return 0
	}
	return math.Round(float64(score)/float64(count)*1000) / 10
}

// Passed reports whether score/count reaches the pass mark. The exact ratio is
// compared, not the rounded percentage shown to the candidate.
func Passed(score, count int) bool {
	if count == 0 {
		return false
	}
	return float64(score)*100 >= domain.PassPercentage*float64(count)
}

// persist delivers the summary and responses once. Failures are logged and kept
// as a notice; they never affect the summary already returned.
func (c *Controller) persist(summary domain.AttemptSummary, records []domain.ResponseRecord, done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PersistTimeout)
	defer cancel()

	var summaryErr, responsesErr error
	var g errgroup.Group
	if c.cfg.Results != nil {
		g.Go(func() error {
			if err := c.cfg.Results.SubmitSummary(ctx, summary); err != nil {
				summaryErr = fmt.Errorf("save summary: %w", err)
				c.log.Error().Err(err).Msg("failed to save attempt summary")
			}
			return nil
		})
	}
	if c.cfg.Responses != nil {
		g.Go(func() error {
			if err := c.cfg.Responses.SubmitResponses(ctx, summary.AttemptID, records); err != nil {
				responsesErr = fmt.Errorf("save responses: %w", err)
				c.log.Error().Err(err).Int("records", len(records)).Msg("failed to save attempt responses")
			}
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(summaryErr, responsesErr)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.persistErr = err
	if err != nil {
		c.broadcastLocked(Event{Type: EventNotice, RemainingSeconds: c.remaining, Notice: err.Error()})
	}
}

// AwaitPersistence blocks until the background sink calls finish and returns the
// non-fatal persistence error, if any.
func (c *Controller) AwaitPersistence(ctx context.Context) error {
	c.mu.Lock()
	done := c.persistDone
	c.mu.Unlock()
	if done == nil {
		return domain.ErrNotSubmitted
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistErr
}

// Summary returns the scored summary once the attempt is submitted.
func (c *Controller) Summary() (domain.AttemptSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary == nil {
		return domain.AttemptSummary{}, domain.ErrNotSubmitted
	}
	return *c.summary, nil
}
