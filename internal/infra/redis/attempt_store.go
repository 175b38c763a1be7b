package redis

import (
	"context"
	"sync"
	"time"

	"exam-session-service/internal/exam"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AttemptStore is a Redis-aware implementation of app.AttemptRepository.
// Notes:
//   - Controllers own a live timer, so they stay in a local map on the instance
//     that started them.
//   - Redis only carries a liveness marker per attempt so other instances (and
//     operators) can see which attempts are running. No attempt progress is written.
type AttemptStore struct {
	client   *redis.Client
	ttl      time.Duration
	log      zerolog.Logger
	mu       sync.RWMutex
	attempts map[string]*exam.Controller
}

func NewAttemptStore(client *redis.Client, ttl time.Duration, log zerolog.Logger) *AttemptStore {
	return &AttemptStore{
		client:   client,
		ttl:      ttl,
		log:      log.With().Str("component", "redis_attempt_store").Logger(),
		attempts: make(map[string]*exam.Controller),
	}
}

func (s *AttemptStore) Put(attempt *exam.Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ID()] = attempt
	// the marker is informational; the attempt runs without it
	if err := s.client.Set(context.Background(), s.key(attempt.ID()), "1", s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID()).Msg("failed to set attempt liveness marker")
	}
}

func (s *AttemptStore) Get(attemptID string) (*exam.Controller, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	return attempt, ok
}

func (s *AttemptStore) Delete(attemptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attemptID]; !ok {
		return
	}
	delete(s.attempts, attemptID)
	if err := s.client.Del(context.Background(), s.key(attemptID)).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID).Msg("failed to clear attempt liveness marker")
	}
}

func (s *AttemptStore) key(attemptID string) string {
	return "exam:attempt:" + attemptID
}
