package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"exam-session-service/internal/domain"
	"exam-session-service/internal/exam"
	"github.com/rs/zerolog"
)

// AttemptRepository abstracts where live attempts are kept (in-memory, Redis-marked, etc).
type AttemptRepository interface {
	Put(attempt *exam.Controller)
	Get(attemptID string) (*exam.Controller, bool)
	Delete(attemptID string)
}

// QuestionRepository loads the questions of a group/test pair (from cache/backing store).
type QuestionRepository interface {
	GetQuestions(ctx context.Context, group, test string) ([]domain.Question, error)
}

// ResultStore receives finished attempts and answers allowance and leaderboard queries.
type ResultStore interface {
	exam.ResultSink
	exam.ResponseSink
	AttemptsLeft(ctx context.Context, userID string) (int, error)
	Leaderboard(ctx context.Context, group, test string, limit int) (domain.Leaderboard, error)
}

// Options tunes attempts created by the service.
type Options struct {
	Duration       time.Duration
	PersistTimeout time.Duration
	Logger         zerolog.Logger
	// NewTicker overrides the countdown clock; tests only.
	NewTicker exam.TickerFactory
}

// ExamService contains the exam-taking use cases.
type ExamService struct {
	attempts  AttemptRepository
	questions QuestionRepository
	results   ResultStore
	opts      Options
	log       zerolog.Logger

	mu sync.Mutex
	// pending counts started attempts per user whose result has not been saved yet.
	pending      map[string]int
	reservations map[string]*reservation
}

// reservation holds one unit of a user's allowance for a live attempt.
type reservation struct {
	userID string
	once   sync.Once
}

// reservingSink releases the attempt's reservation once the result store has had
// its chance to record the attempt.
type reservingSink struct {
	sink exam.ResultSink
	done func()
}

func (r reservingSink) SubmitSummary(ctx context.Context, summary domain.AttemptSummary) error {
	defer r.done()
	return r.sink.SubmitSummary(ctx, summary)
}

func NewExamService(attempts AttemptRepository, questions QuestionRepository, results ResultStore, opts Options) *ExamService {
	if opts.Duration <= 0 {
		opts.Duration = exam.DefaultDuration
	}
	return &ExamService{
		attempts:  attempts,
		questions: questions,
		results:   results,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "exam_service").Logger(),

		pending:      make(map[string]int),
		reservations: make(map[string]*reservation),
	}
}

// StartAttempt loads the questions for group/test and begins a timed attempt for userID.
// Nothing is created when the user has no attempts left or no questions exist.
// Attempts already running or awaiting their save count against the allowance.
func (s *ExamService) StartAttempt(ctx context.Context, userID, group, test string) (domain.AttemptView, error) {
	if strings.TrimSpace(group) == "" || strings.TrimSpace(test) == "" {
		return domain.AttemptView{}, domain.ErrQuestionsNotFound
	}

	res, err := s.reserve(ctx, userID)
	if err != nil {
		return domain.AttemptView{}, err
	}

	questions, err := s.questions.GetQuestions(ctx, group, test)
	if err != nil {
		s.release(res)
		return domain.AttemptView{}, err
	}

	attempt, err := exam.New(questions, exam.Config{
		UserID:         userID,
		Group:          group,
		Test:           test,
		Duration:       s.opts.Duration,
		Results:        reservingSink{sink: s.results, done: func() { s.release(res) }},
		Responses:      s.results,
		PersistTimeout: s.opts.PersistTimeout,
		Logger:         s.opts.Logger,
		NewTicker:      s.opts.NewTicker,
	})
	if err != nil {
		s.release(res)
		return domain.AttemptView{}, err
	}
	if err := attempt.Start(); err != nil {
		s.release(res)
		return domain.AttemptView{}, err
	}
	s.mu.Lock()
	s.reservations[attempt.ID()] = res
	s.mu.Unlock()
	s.attempts.Put(attempt)

	s.log.Info().
		Str("attempt_id", attempt.ID()).
		Str("user_id", userID).
		Str("group", group).
		Str("test", test).
		Int("questions", len(questions)).
		Msg("attempt started")
	return attempt.View(), nil
}

// SelectOption answers the current question.
func (s *ExamService) SelectOption(attemptID, option string) (domain.AttemptView, error) {
	return s.apply(attemptID, func(c *exam.Controller) error { return c.SelectOption(option) })
}

// Advance saves the current question and moves on.
func (s *ExamService) Advance(attemptID string) (domain.AttemptView, error) {
	return s.apply(attemptID, (*exam.Controller).Advance)
}

// Retreat moves to the previous question.
func (s *ExamService) Retreat(attemptID string) (domain.AttemptView, error) {
	return s.apply(attemptID, (*exam.Controller).Retreat)
}

// MarkForReview flags the current question and moves on.
func (s *ExamService) MarkForReview(attemptID string) (domain.AttemptView, error) {
	return s.apply(attemptID, (*exam.Controller).MarkForReview)
}

// ClearResponse removes the current answer.
func (s *ExamService) ClearResponse(attemptID string) (domain.AttemptView, error) {
	return s.apply(attemptID, (*exam.Controller).ClearResponse)
}

// JumpTo navigates straight to a question index.
func (s *ExamService) JumpTo(attemptID string, index int) (domain.AttemptView, error) {
	return s.apply(attemptID, func(c *exam.Controller) error { return c.JumpTo(index) })
}

// RequestSubmit pauses the attempt pending confirmation.
func (s *ExamService) RequestSubmit(attemptID string) (domain.AttemptView, error) {
	return s.apply(attemptID, (*exam.Controller).RequestSubmit)
}

// CancelSubmit resumes the attempt.
func (s *ExamService) CancelSubmit(attemptID string) (domain.AttemptView, error) {
	return s.apply(attemptID, (*exam.Controller).CancelSubmit)
}

// Submit scores the attempt. The summary is returned at once; saving it happens in
// the background and never blocks or fails this call.
func (s *ExamService) Submit(attemptID string) (domain.AttemptSummary, error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return domain.AttemptSummary{}, domain.ErrAttemptNotFound
	}
	return attempt.Submit()
}

// View returns the current state of an attempt.
func (s *ExamService) View(attemptID string) (domain.AttemptView, error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return domain.AttemptView{}, domain.ErrAttemptNotFound
	}
	return attempt.View(), nil
}

// Report returns the post-submission review of an attempt.
func (s *ExamService) Report(attemptID string) (domain.Report, error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return domain.Report{}, domain.ErrAttemptNotFound
	}
	return attempt.Report()
}

// Subscribe streams countdown and submission events for an attempt.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ExamService) Subscribe(attemptID string) (<-chan exam.Event, func(), error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return nil, nil, domain.ErrAttemptNotFound
	}
	ch, cancel := attempt.Subscribe()
	return ch, cancel, nil
}

// AwaitPersistence waits for the background save of a submitted attempt.
func (s *ExamService) AwaitPersistence(ctx context.Context, attemptID string) error {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return domain.ErrAttemptNotFound
	}
	return attempt.AwaitPersistence(ctx)
}

// Discard forgets an attempt. An attempt that was never submitted is lost along
// with its progress; nothing is saved for it.
func (s *ExamService) Discard(attemptID string) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return
	}
	attempt.Close()
	s.attempts.Delete(attemptID)

	s.mu.Lock()
	res := s.reservations[attemptID]
	delete(s.reservations, attemptID)
	s.mu.Unlock()

	// a submitted attempt keeps its reservation until the result store records it
	if attempt.Phase() != domain.PhaseSubmitted {
		if res != nil {
			s.release(res)
		}
		s.log.Info().Str("attempt_id", attemptID).Msg("attempt abandoned before submission")
	}
}

// Leaderboard returns the best results for a group/test pair.
func (s *ExamService) Leaderboard(ctx context.Context, group, test string, limit int) (domain.Leaderboard, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.results.Leaderboard(ctx, group, test, limit)
}

// reserve takes one unit of userID's allowance, counting attempts that are still
// running or not yet saved.
func (s *ExamService) reserve(ctx context.Context, userID string) (*reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	left, err := s.results.AttemptsLeft(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check attempts: %w", err)
	}
	if left-s.pending[userID] <= 0 {
		return nil, domain.ErrNoAttemptsLeft
	}
	s.pending[userID]++
	return &reservation{userID: userID}, nil
}

func (s *ExamService) release(res *reservation) {
	res.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.pending[res.userID]--
		if s.pending[res.userID] <= 0 {
			delete(s.pending, res.userID)
		}
	})
}

func (s *ExamService) apply(attemptID string, op func(*exam.Controller) error) (domain.AttemptView, error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return domain.AttemptView{}, domain.ErrAttemptNotFound
	}
	if err := op(attempt); err != nil {
		return attempt.View(), err
	}
	return attempt.View(), nil
}
