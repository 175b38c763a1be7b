package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"exam-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ResultStore keeps submitted attempts in Redis.
// Layout:
//
//	SET   exam:result:{attemptID}            <summary json>
//	ZADD  exam:leaderboard:{group}:{test}    <rank score> {attemptID}
//	RPUSH exam:responses:{attemptID}         <record json>...
//	SET   exam:attempts_left:{userID}        <n>  (seeded with the default allowance)
type ResultStore struct {
	client           *redis.Client
	defaultAllowance int
}

func NewResultStore(client *redis.Client, defaultAllowance int) *ResultStore {
	return &ResultStore{client: client, defaultAllowance: defaultAllowance}
}

// SetAttempts records how many attempts a user has paid for.
func (s *ResultStore) SetAttempts(ctx context.Context, userID string, n int) error {
	return s.client.Set(ctx, allowanceKey(userID), n, 0).Err()
}

func (s *ResultStore) AttemptsLeft(ctx context.Context, userID string) (int, error) {
	n, err := s.client.Get(ctx, allowanceKey(userID)).Int()
	if err == redis.Nil {
		return s.defaultAllowance, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get attempts left: %w", err)
	}
	return n, nil
}

// SubmitSummary stores the summary, ranks it and uses up one attempt in a single
// script. A repeated submission of the same attempt id changes nothing.
func (s *ResultStore) SubmitSummary(ctx context.Context, summary domain.AttemptSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	consume := "0"
	if summary.UserID != "" {
		consume = "1"
	}
	keys := []string{
		resultKey(summary.AttemptID),
		leaderboardKey(summary.Group, summary.Test),
		allowanceKey(summary.UserID),
	}
	err = storeResult.Run(ctx, s.client, keys, raw, rankScore(summary), summary.AttemptID, s.defaultAllowance, consume).Err()
	if err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	return nil
}

// storeResult writes the result, its leaderboard entry and the allowance
// decrement together. Everything that can fail (GET, ZADD on a wrong type) runs
// before the first write, so a failed call leaves no partial result behind.
//
//	KEYS: result, leaderboard, allowance
//	ARGV: summary json, rank score, attempt id, default allowance, consume flag
var storeResult = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
local n = nil
if ARGV[5] == "1" then
	n = tonumber(redis.call("GET", KEYS[3]) or ARGV[4])
	if n > 0 then
		n = n - 1
	end
end
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[3])
redis.call("SET", KEYS[1], ARGV[1])
if n ~= nil then
	redis.call("SET", KEYS[3], n)
end
return 1
`)

func (s *ResultStore) SubmitResponses(ctx context.Context, attemptID string, records []domain.ResponseRecord) error {
	if len(records) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(records))
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		values = append(values, raw)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, responsesKey(attemptID))
	pipe.RPush(ctx, responsesKey(attemptID), values...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store responses: %w", err)
	}
	return nil
}

// Responses reads back the stored response records of an attempt.
func (s *ResultStore) Responses(ctx context.Context, attemptID string) ([]domain.ResponseRecord, error) {
	raws, err := s.client.LRange(ctx, responsesKey(attemptID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read responses: %w", err)
	}
	records := make([]domain.ResponseRecord, 0, len(raws))
	for _, raw := range raws {
		var rec domain.ResponseRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *ResultStore) Leaderboard(ctx context.Context, group, test string, limit int) (domain.Leaderboard, error) {
	lb := domain.Leaderboard{Group: group, Test: test, Entries: []domain.LeaderboardEntry{}}
	if limit <= 0 {
		limit = 10
	}

	ids, err := s.client.ZRevRange(ctx, leaderboardKey(group, test), 0, int64(limit-1)).Result()
	if err != nil {
		return lb, fmt.Errorf("read leaderboard: %w", err)
	}
	if len(ids) == 0 {
		return lb, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = resultKey(id)
	}
	raws, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return lb, fmt.Errorf("read results: %w", err)
	}

	for _, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var summary domain.AttemptSummary
		if err := json.Unmarshal([]byte(str), &summary); err != nil {
			continue
		}
		lb.Entries = append(lb.Entries, domain.LeaderboardEntry{
			AttemptID:        summary.AttemptID,
			UserID:           summary.UserID,
			Score:            summary.Score,
			Percentage:       summary.Percentage,
			TimeTakenSeconds: summary.TimeTakenSeconds,
			SubmittedAt:      summary.SubmittedAt,
		})
	}
	domain.SortLeaderboard(lb.Entries)
	return lb, nil
}

// rankScore orders by score first and shorter time second.
func rankScore(summary domain.AttemptSummary) float64 {
	return float64(summary.Score)*1e7 - float64(summary.TimeTakenSeconds)
}

func resultKey(attemptID string) string {
	return "exam:result:" + attemptID
}

func responsesKey(attemptID string) string {
	return "exam:responses:" + attemptID
}

func leaderboardKey(group, test string) string {
	return "exam:leaderboard:" + group + ":" + test
}

func allowanceKey(userID string) string {
	return "exam:attempts_left:" + userID
}
