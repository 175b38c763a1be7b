package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"exam-session-service/internal/app"
	"exam-session-service/internal/domain"
	"exam-session-service/internal/exam"
	"exam-session-service/internal/infra/memory"
	"github.com/rs/zerolog"
)

func TestStartAndSubmitAttempt(t *testing.T) {
	ctx := context.Background()
	service, results, _ := newTestService(nil)

	view, err := service.StartAttempt(ctx, "u1", "maths", "unit-1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if view.QuestionCount != 3 || view.Current.QuestionNumber != 1 {
		t.Fatalf("unexpected first view: %+v", view)
	}
	id := view.AttemptID

	steps := []func() (domain.AttemptView, error){
		func() (domain.AttemptView, error) { return service.SelectOption(id, "4") },
		func() (domain.AttemptView, error) { return service.MarkForReview(id) },
		func() (domain.AttemptView, error) { return service.SelectOption(id, "7") },
		func() (domain.AttemptView, error) { return service.Advance(id) },
		func() (domain.AttemptView, error) { return service.Retreat(id) },
		func() (domain.AttemptView, error) { return service.ClearResponse(id) },
		func() (domain.AttemptView, error) { return service.JumpTo(id, 2) },
		func() (domain.AttemptView, error) { return service.SelectOption(id, "9") },
		func() (domain.AttemptView, error) { return service.RequestSubmit(id) },
		func() (domain.AttemptView, error) { return service.CancelSubmit(id) },
		func() (domain.AttemptView, error) { return service.RequestSubmit(id) },
	}
	for i, step := range steps {
		if _, err := step(); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}

	view, err = service.View(id)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	want := []domain.QuestionStatus{domain.StatusAnsweredMarked, domain.StatusNotAnswered, domain.StatusAnswered}
	for i, s := range want {
		if view.Statuses[i] != s {
			t.Fatalf("question %d: expected %s, got %s", i, s, view.Statuses[i])
		}
	}

	summary, err := service.Submit(id)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if summary.Score != 2 || summary.Attempted != 2 || summary.Percentage != 66.7 || summary.Result != domain.ResultPass {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.UserID != "u1" || summary.Group != "maths" || summary.Test != "unit-1" {
		t.Fatalf("summary lost attempt context: %+v", summary)
	}

	if err := service.AwaitPersistence(ctx, id); err != nil {
		t.Fatalf("persistence: %v", err)
	}
	if _, ok := results.Summary(id); !ok {
		t.Fatalf("expected summary saved")
	}
	if got := len(results.Responses(id)); got != 3 {
		t.Fatalf("expected 3 responses saved, got %d", got)
	}
	left, _ := results.AttemptsLeft(ctx, "u1")
	if left != 1 {
		t.Fatalf("expected one attempt left, got %d", left)
	}

	lb, err := service.Leaderboard(ctx, "maths", "unit-1", 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].AttemptID != id {
		t.Fatalf("unexpected leaderboard: %+v", lb.Entries)
	}
}

func TestStartRequiresAttemptsLeft(t *testing.T) {
	ctx := context.Background()
	service, results, _ := newTestService(nil)
	results.SetAttempts("u1", 0)

	_, err := service.StartAttempt(ctx, "u1", "maths", "unit-1")
	if !errors.Is(err, domain.ErrNoAttemptsLeft) {
		t.Fatalf("expected ErrNoAttemptsLeft, got %v", err)
	}
}

func TestLiveAttemptsHoldAllowance(t *testing.T) {
	ctx := context.Background()
	service, results, _ := newTestService(nil)
	results.SetAttempts("u1", 1)

	first, err := service.StartAttempt(ctx, "u1", "maths", "unit-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.StartAttempt(ctx, "u1", "maths", "unit-1"); !errors.Is(err, domain.ErrNoAttemptsLeft) {
		t.Fatalf("second concurrent start: expected ErrNoAttemptsLeft, got %v", err)
	}

	if _, err := service.RequestSubmit(first.AttemptID); err != nil {
		t.Fatalf("request submit: %v", err)
	}
	if _, err := service.Submit(first.AttemptID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.StartAttempt(ctx, "u1", "maths", "unit-1"); !errors.Is(err, domain.ErrNoAttemptsLeft) {
		t.Fatalf("start after submit: expected ErrNoAttemptsLeft, got %v", err)
	}
	if err := service.AwaitPersistence(ctx, first.AttemptID); err != nil {
		t.Fatalf("persistence: %v", err)
	}
	service.Discard(first.AttemptID)
	if _, err := service.StartAttempt(ctx, "u1", "maths", "unit-1"); !errors.Is(err, domain.ErrNoAttemptsLeft) {
		t.Fatalf("start after save: expected ErrNoAttemptsLeft, got %v", err)
	}
	if left, _ := results.AttemptsLeft(ctx, "u1"); left != 0 {
		t.Fatalf("expected no attempts left, got %d", left)
	}
}

func TestDiscardReleasesAllowance(t *testing.T) {
	ctx := context.Background()
	service, results, _ := newTestService(nil)
	results.SetAttempts("u2", 1)

	view, err := service.StartAttempt(ctx, "u2", "maths", "unit-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	service.Discard(view.AttemptID)
	service.Discard(view.AttemptID)

	if _, err := service.StartAttempt(ctx, "u2", "maths", "unit-1"); err != nil {
		t.Fatalf("abandoned attempt should give the allowance back: %v", err)
	}
	if _, err := service.StartAttempt(ctx, "u2", "maths", "unit-1"); !errors.Is(err, domain.ErrNoAttemptsLeft) {
		t.Fatalf("expected ErrNoAttemptsLeft, got %v", err)
	}
}

func TestFailedStartReleasesAllowance(t *testing.T) {
	ctx := context.Background()
	service, results, _ := newTestService(nil)
	results.SetAttempts("u3", 1)

	if _, err := service.StartAttempt(ctx, "u3", "maths", "missing"); !errors.Is(err, domain.ErrQuestionsNotFound) {
		t.Fatalf("expected ErrQuestionsNotFound, got %v", err)
	}
	if _, err := service.StartAttempt(ctx, "u3", "maths", "unit-1"); err != nil {
		t.Fatalf("failed start must not hold the allowance: %v", err)
	}
}

func TestSubmitWithoutConfirmationIsRejected(t *testing.T) {
	ctx := context.Background()
	service, results, _ := newTestService(nil)

	view, err := service.StartAttempt(ctx, "u1", "maths", "unit-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Submit(view.AttemptID); !errors.Is(err, domain.ErrNotConfirming) {
		t.Fatalf("expected ErrNotConfirming, got %v", err)
	}
	if _, ok := results.Summary(view.AttemptID); ok {
		t.Fatalf("unconfirmed submit must not save a result")
	}
}

func TestStartUnknownTest(t *testing.T) {
	ctx := context.Background()
	service, _, attempts := newTestService(nil)

	for _, pair := range [][2]string{{"maths", "missing"}, {"", "unit-1"}, {"maths", " "}} {
		_, err := service.StartAttempt(ctx, "u1", pair[0], pair[1])
		if !errors.Is(err, domain.ErrQuestionsNotFound) {
			t.Fatalf("%v: expected ErrQuestionsNotFound, got %v", pair, err)
		}
	}
	if attempts.Len() != 0 {
		t.Fatalf("no attempt should be created, got %d", attempts.Len())
	}
}

func TestUnknownAttempt(t *testing.T) {
	service, _, _ := newTestService(nil)

	if _, err := service.Advance("nope"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
	if _, err := service.Submit("nope"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
	if _, _, err := service.Subscribe("nope"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestDiscardAbandonsWithoutSaving(t *testing.T) {
	ctx := context.Background()
	service, results, attempts := newTestService(nil)

	view, err := service.StartAttempt(ctx, "u1", "maths", "unit-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.SelectOption(view.AttemptID, "4"); err != nil {
		t.Fatalf("select: %v", err)
	}

	service.Discard(view.AttemptID)
	if attempts.Len() != 0 {
		t.Fatalf("expected attempt removed")
	}
	if _, ok := results.Summary(view.AttemptID); ok {
		t.Fatalf("abandoned attempt must not be saved")
	}
	if left, _ := results.AttemptsLeft(ctx, "u1"); left != 2 {
		t.Fatalf("abandoned attempt must not consume allowance, got %d left", left)
	}
}

func TestTimerExpirySubmitsThroughService(t *testing.T) {
	ctx := context.Background()
	tickers := &manualTickers{}
	service, results, _ := newTestService(tickers.NewTicker)

	view, err := service.StartAttempt(ctx, "u1", "maths", "unit-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	events, cancel, err := service.Subscribe(view.AttemptID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	ticker := tickers.last()
	for i := 0; i < 2; i++ {
		ticker.ch <- time.Now()
	}

	var summary *domain.AttemptSummary
	timeout := time.After(2 * time.Second)
	for summary == nil {
		select {
		case ev := <-events:
			if ev.Type == exam.EventSubmitted {
				summary = ev.Summary
			}
		case <-timeout:
			t.Fatalf("timed out waiting for automatic submission")
		}
	}
	if summary.TimeTakenSeconds != 2 || summary.Attempted != 0 || summary.Result != domain.ResultFail {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if err := service.AwaitPersistence(ctx, view.AttemptID); err != nil {
		t.Fatalf("persistence: %v", err)
	}
	if _, ok := results.Summary(view.AttemptID); !ok {
		t.Fatalf("expected expired attempt saved")
	}
	if _, err := service.Submit(view.AttemptID); !errors.Is(err, domain.ErrAttemptSubmitted) {
		t.Fatalf("expected ErrAttemptSubmitted, got %v", err)
	}
}

func newTestService(newTicker exam.TickerFactory) (*app.ExamService, *memory.ResultStore, *memory.AttemptStore) {
	attempts := memory.NewAttemptStore()
	results := memory.NewResultStore(2)
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(memory.QuestionBank{
		"maths": {
			"unit-1": {
				{ID: "m3", QuestionNumber: 3, Text: "3 x 3?", Options: []string{"6", "9", "12", "33"}, CorrectOptionLetter: "B"},
				{ID: "m1", QuestionNumber: 1, Text: "2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectOptionLetter: "B"},
				{ID: "m2", QuestionNumber: 2, Text: "10 - 3?", Options: []string{"7", "6", "13", "3"}, CorrectOptionLetter: "A"},
			},
		},
	}), 5*time.Minute)

	duration := time.Hour
	if newTicker != nil {
		duration = 2 * time.Second
	}
	service := app.NewExamService(attempts, questions, results, app.Options{
		Duration:  duration,
		Logger:    zerolog.Nop(),
		NewTicker: newTicker,
	})
	return service, results, attempts
}

type manualTicker struct {
	ch chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

type manualTickers struct {
	tickers []*manualTicker
}

func (m *manualTickers) NewTicker(time.Duration) exam.Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	m.tickers = append(m.tickers, t)
	return t
}

func (m *manualTickers) last() *manualTicker {
	return m.tickers[len(m.tickers)-1]
}
