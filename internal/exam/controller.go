package exam

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"exam-session-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultDuration is the exam length used when none is configured.
const DefaultDuration = 2 * time.Hour

// ResultSink persists a finished attempt's summary (and its bookkeeping side effects).
type ResultSink interface {
	SubmitSummary(ctx context.Context, summary domain.AttemptSummary) error
}

// ResponseSink persists per-question responses for later review.
type ResponseSink interface {
	SubmitResponses(ctx context.Context, attemptID string, records []domain.ResponseRecord) error
}

// Config carries the collaborators and knobs of a single attempt.
type Config struct {
	UserID string
	Group  string
	Test   string

	// Duration is the total exam time, truncated to whole seconds.
	Duration time.Duration

	Results   ResultSink
	Responses ResponseSink
	// PersistTimeout bounds the background sink calls.
	PersistTimeout time.Duration

	Logger    zerolog.Logger
	Now       func() time.Time
	NewTicker TickerFactory
}

type loadedQuestion struct {
	domain.Question
	correct string
}

// Controller drives one timed attempt from load to submission.
// All state is guarded by mu so timer ticks and user operations never interleave.
type Controller struct {
	mu sync.Mutex

	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
	newTicker TickerFactory

	questions []loadedQuestion
	total     int

	attemptID   string
	startedAt   time.Time
	submittedAt time.Time

	current    int
	selected   map[int]string
	answeredAt map[int]time.Time
	marked     map[int]struct{}
	status     []domain.QuestionStatus
	remaining  int
	phase      domain.Phase

	timer   *timer
	summary *domain.AttemptSummary
	records []domain.ResponseRecord

	persistDone chan struct{}
	persistErr  error

	subscribers map[chan Event]struct{}
	closed      bool
}

// New builds an attempt over questions. It refuses an empty list and questions whose
// answer letter cannot be resolved. The timer is not running until Start is called.
func New(questions []domain.Question, cfg Config) (*Controller, error) {
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}

	sorted := make([]domain.Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].QuestionNumber < sorted[j].QuestionNumber
	})

	loaded := make([]loadedQuestion, len(sorted))
	for i, q := range sorted {
		correct, err := q.CorrectOptionText()
		if err != nil {
			return nil, err
		}
		q.Options = append([]string(nil), q.Options...)
		loaded[i] = loadedQuestion{Question: q, correct: correct}
	}

	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newTicker := cfg.NewTicker
	if newTicker == nil {
		newTicker = NewSystemTicker
	}

	total := int(cfg.Duration / time.Second)
	startedAt := now()
	attemptID := newAttemptID(startedAt)

	status := make([]domain.QuestionStatus, len(loaded))
	for i := range status {
		status[i] = domain.StatusNotVisited
	}

	return &Controller{
		cfg:         cfg,
		log:         cfg.Logger.With().Str("component", "exam_controller").Str("attempt_id", attemptID).Logger(),
		now:         now,
		newTicker:   newTicker,
		questions:   loaded,
		total:       total,
		attemptID:   attemptID,
		startedAt:   startedAt,
		selected:    make(map[int]string),
		answeredAt:  make(map[int]time.Time),
		marked:      make(map[int]struct{}),
		status:      status,
		remaining:   total,
		phase:       domain.PhaseInProgress,
		subscribers: make(map[chan Event]struct{}),
	}, nil
}

// newAttemptID combines a random UUID with a nanosecond timestamp.
func newAttemptID(at time.Time) string {
	return fmt.Sprintf("%s-%d", uuid.NewString(), at.UnixNano())
}

// ID returns the attempt id.
func (c *Controller) ID() string {
	return c.attemptID
}

// SelectOption records option as the answer to the current question. The text is
// stored as given; it is not checked against the question's options.
func (c *Controller) SelectOption(option string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}

	i := c.current
	c.selected[i] = option
	c.answeredAt[i] = c.now()
	if c.isMarked(i) {
		c.status[i] = domain.StatusAnsweredMarked
	} else {
		c.status[i] = domain.StatusAnswered
	}
	return nil
}

// Advance finalizes the current question and moves to the next one ("Save & Next").
// At the last question only the status is finalized.
func (c *Controller) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}
	c.advanceLocked()
	return nil
}

// Retreat moves to the previous question without touching any status.
func (c *Controller) Retreat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}
	if c.current > 0 {
		c.current--
	}
	return nil
}

// MarkForReview flags the current question and advances.
func (c *Controller) MarkForReview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}

	i := c.current
	c.marked[i] = struct{}{}
	if _, ok := c.selected[i]; ok {
		c.status[i] = domain.StatusAnsweredMarked
	} else {
		c.status[i] = domain.StatusReview
	}
	c.advanceLocked()
	return nil
}

// ClearResponse drops the current question's answer, keeping any review mark.
func (c *Controller) ClearResponse() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}

	i := c.current
	delete(c.selected, i)
	delete(c.answeredAt, i)
	if c.isMarked(i) {
		c.status[i] = domain.StatusReview
	} else {
		c.status[i] = domain.StatusNotAnswered
	}
	return nil
}

// JumpTo moves straight to target, as the question palette does. Out-of-range
// targets leave the attempt untouched.
func (c *Controller) JumpTo(target int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}
	if target < 0 || target >= len(c.questions) {
		return fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, target)
	}
	if target == c.current {
		return nil
	}
	c.finalizeLeaving(c.current)
	c.current = target
	return nil
}

// RequestSubmit asks for confirmation and freezes the countdown meanwhile.
func (c *Controller) RequestSubmit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}
	c.stopTimerLocked()
	c.phase = domain.PhaseConfirmingSubmit
	return nil
}

// CancelSubmit returns to the exam and resumes the countdown where it stopped.
func (c *Controller) CancelSubmit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.phase {
	case domain.PhaseSubmitted:
		return domain.ErrAttemptSubmitted
	case domain.PhaseInProgress:
		return domain.ErrNotConfirming
	}
	c.phase = domain.PhaseInProgress
	if !c.closed {
		c.startTimerLocked()
	}
	return nil
}

// Submit confirms a pending RequestSubmit, scores the attempt and returns its
// summary. Only the timer may submit straight from in-progress. Persistence runs
// in the background; see AwaitPersistence.
func (c *Controller) Submit() (domain.AttemptSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.phase {
	case domain.PhaseSubmitted:
		return domain.AttemptSummary{}, domain.ErrAttemptSubmitted
	case domain.PhaseInProgress:
		return domain.AttemptSummary{}, domain.ErrNotConfirming
	}
	return c.submitLocked(), nil
}

// Phase returns the attempt's current phase.
func (c *Controller) Phase() domain.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) mutableLocked() error {
	switch c.phase {
	case domain.PhaseSubmitted:
		return domain.ErrAttemptSubmitted
	case domain.PhaseConfirmingSubmit:
		return domain.ErrNotInProgress
	}
	return nil
}

func (c *Controller) advanceLocked() {
	c.finalizeLeaving(c.current)
	if c.current < len(c.questions)-1 {
		c.current++
	}
}

// finalizeLeaving is the single status transition applied to a question the
// candidate navigates away from. Only an untouched question changes (to
// not-answered); answered and review states are kept. Selecting an option always
// moves a question out of not-visited, so no answer is lost here.
func (c *Controller) finalizeLeaving(i int) {
	if c.status[i] == domain.StatusNotVisited {
		c.status[i] = domain.StatusNotAnswered
	}
}

func (c *Controller) isMarked(i int) bool {
	_, ok := c.marked[i]
	return ok
}
