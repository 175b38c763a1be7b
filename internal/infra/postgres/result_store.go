package postgres

import (
	"context"
	"errors"
	"fmt"

	"exam-session-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultStore persists summaries and responses in Postgres and tracks each
// user's remaining attempts in the users table.
type ResultStore struct {
	pool             *pgxpool.Pool
	defaultAllowance int
}

func NewResultStore(pool *pgxpool.Pool, defaultAllowance int) *ResultStore {
	return &ResultStore{pool: pool, defaultAllowance: defaultAllowance}
}

// AttemptsLeft returns the user's remaining attempts; unknown users get the default allowance.
func (s *ResultStore) AttemptsLeft(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT attempts_left FROM users WHERE id = $1`, userID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.defaultAllowance, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get attempts left: %w", err)
	}
	return n, nil
}

// SubmitSummary inserts the result and decrements the user's attempts in one
// transaction. A repeated attempt id is ignored.
func (s *ResultStore) SubmitSummary(ctx context.Context, summary domain.AttemptSummary) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO results (attempt_id, user_id, group_name, test_name, score, question_count,
			attempted, not_attempted, percentage, result, time_taken_seconds, started_at, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (attempt_id) DO NOTHING`,
		summary.AttemptID, summary.UserID, summary.Group, summary.Test, summary.Score, summary.QuestionCount,
		summary.Attempted, summary.NotAttempted, summary.Percentage, string(summary.Result),
		summary.TimeTakenSeconds, summary.StartedAt, summary.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	if summary.UserID != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO users (id, attempts_left) VALUES ($1, GREATEST($2 - 1, 0))
			ON CONFLICT (id) DO UPDATE SET attempts_left = GREATEST(users.attempts_left - 1, 0)`,
			summary.UserID, s.defaultAllowance)
		if err != nil {
			return fmt.Errorf("consume attempt: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SubmitResponses writes one row per question in a single batch.
func (s *ResultStore) SubmitResponses(ctx context.Context, attemptID string, records []domain.ResponseRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO responses (attempt_id, question_id, question_number, selected_option,
				correct_option, correct, status, answered_at, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (attempt_id, question_id) DO NOTHING`,
			attemptID, rec.QuestionID, rec.QuestionNumber, rec.SelectedOption,
			rec.CorrectOption, rec.Correct, string(rec.Status), rec.AnsweredAt, rec.SubmittedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert response: %w", err)
		}
	}
	return nil
}

func (s *ResultStore) Leaderboard(ctx context.Context, group, test string, limit int) (domain.Leaderboard, error) {
	lb := domain.Leaderboard{Group: group, Test: test, Entries: []domain.LeaderboardEntry{}}
	rows, err := s.pool.Query(ctx, `
		SELECT attempt_id, user_id, score, percentage, time_taken_seconds, submitted_at
		FROM results
		WHERE group_name = $1 AND test_name = $2
		ORDER BY score DESC, time_taken_seconds ASC, submitted_at ASC, user_id ASC
		LIMIT $3`, group, test, limit)
	if err != nil {
		return lb, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.AttemptID, &e.UserID, &e.Score, &e.Percentage, &e.TimeTakenSeconds, &e.SubmittedAt); err != nil {
			return lb, fmt.Errorf("scan leaderboard: %w", err)
		}
		lb.Entries = append(lb.Entries, e)
	}
	return lb, rows.Err()
}
