package memory

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"exam-session-service/internal/domain"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// QuestionLoader fetches the questions of a group/test pair from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, group, test string) ([]domain.Question, error)
}

// QuestionRepository caches question sets with TTL to avoid repeated DB hits.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestions),
	}
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, group, test string) ([]domain.Question, error) {
	key := bankKey(group, test)
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadQuestions(ctx, group, test)
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			return nil, domain.ErrQuestionsNotFound
		}

		r.mu.Lock()
		r.cache[key] = cachedQuestions{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a loader backed by an in-memory question bank (useful for tests/demos).
type StaticQuestionLoader struct {
	bank map[string][]domain.Question
}

// QuestionBank maps group -> test -> questions.
type QuestionBank map[string]map[string][]domain.Question

func NewStaticQuestionLoader(bank QuestionBank) *StaticQuestionLoader {
	flat := make(map[string][]domain.Question)
	for group, tests := range bank {
		for test, questions := range tests {
			flat[bankKey(group, test)] = questions
		}
	}
	return &StaticQuestionLoader{bank: flat}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, group, test string) ([]domain.Question, error) {
	if questions, ok := l.bank[bankKey(group, test)]; ok && len(questions) > 0 {
		return questions, nil
	}
	return nil, domain.ErrQuestionsNotFound
}

// ReadQuestionBank loads a YAML question bank from path.
func ReadQuestionBank(path string) (QuestionBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	bank := QuestionBank{}
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	return bank, nil
}

func bankKey(group, test string) string {
	return group + "/" + test
}
