package memory

import (
	"context"
	"sync"

	"exam-session-service/internal/domain"
)

// ResultStore keeps submitted attempts in process. Users without an explicit
// allowance start with the default one.
type ResultStore struct {
	defaultAllowance int

	mu        sync.RWMutex
	summaries map[string]domain.AttemptSummary
	responses map[string][]domain.ResponseRecord
	allowance map[string]int
}

func NewResultStore(defaultAllowance int) *ResultStore {
	return &ResultStore{
		defaultAllowance: defaultAllowance,
		summaries:        make(map[string]domain.AttemptSummary),
		responses:        make(map[string][]domain.ResponseRecord),
		allowance:        make(map[string]int),
	}
}

// SetAttempts records how many attempts a user has paid for.
func (s *ResultStore) SetAttempts(userID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowance[userID] = n
}

func (s *ResultStore) AttemptsLeft(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attemptsLocked(userID), nil
}

// SubmitSummary stores the summary and uses up one of the user's attempts.
// Re-submitting the same attempt id is ignored.
func (s *ResultStore) SubmitSummary(_ context.Context, summary domain.AttemptSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.summaries[summary.AttemptID]; ok {
		return nil
	}
	s.summaries[summary.AttemptID] = summary
	if left := s.attemptsLocked(summary.UserID); left > 0 {
		s.allowance[summary.UserID] = left - 1
	}
	return nil
}

func (s *ResultStore) SubmitResponses(_ context.Context, attemptID string, records []domain.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[attemptID] = append([]domain.ResponseRecord(nil), records...)
	return nil
}

// Summary returns a stored summary.
func (s *ResultStore) Summary(attemptID string) (domain.AttemptSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[attemptID]
	return summary, ok
}

// Responses returns the stored response records of an attempt.
func (s *ResultStore) Responses(attemptID string) []domain.ResponseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ResponseRecord(nil), s.responses[attemptID]...)
}

func (s *ResultStore) Leaderboard(_ context.Context, group, test string, limit int) (domain.Leaderboard, error) {
	s.mu.RLock()
	entries := make([]domain.LeaderboardEntry, 0)
	for _, summary := range s.summaries {
		if summary.Group != group || summary.Test != test {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			AttemptID:        summary.AttemptID,
			UserID:           summary.UserID,
			Score:            summary.Score,
			Percentage:       summary.Percentage,
			TimeTakenSeconds: summary.TimeTakenSeconds,
			SubmittedAt:      summary.SubmittedAt,
		})
	}
	s.mu.RUnlock()

	domain.SortLeaderboard(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return domain.Leaderboard{Group: group, Test: test, Entries: entries}, nil
}

func (s *ResultStore) attemptsLocked(userID string) int {
	if n, ok := s.allowance[userID]; ok {
		return n
	}
	return s.defaultAllowance
}
