package memory

import (
	"context"
	"testing"
	"time"

	"exam-session-service/internal/domain"
)

func TestResultStoreDecrementsAllowanceOnce(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore(3)

	summary := domain.AttemptSummary{AttemptID: "a1", UserID: "u1", Group: "g", Test: "t", Score: 2}
	if err := store.SubmitSummary(ctx, summary); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := store.SubmitSummary(ctx, summary); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	left, _ := store.AttemptsLeft(ctx, "u1")
	if left != 2 {
		t.Fatalf("expected 2 attempts left, got %d", left)
	}
	other, _ := store.AttemptsLeft(ctx, "u2")
	if other != 3 {
		t.Fatalf("expected default allowance for new user, got %d", other)
	}
}

func TestResultStoreAllowanceFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore(3)
	store.SetAttempts("u1", 0)

	_ = store.SubmitSummary(ctx, domain.AttemptSummary{AttemptID: "a1", UserID: "u1"})
	if left, _ := store.AttemptsLeft(ctx, "u1"); left != 0 {
		t.Fatalf("expected 0 attempts left, got %d", left)
	}
}

func TestResultStoreLeaderboardOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore(5)
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	for _, s := range []domain.AttemptSummary{
		{AttemptID: "a1", UserID: "slow", Group: "g", Test: "t", Score: 4, TimeTakenSeconds: 900, SubmittedAt: base},
		{AttemptID: "a2", UserID: "fast", Group: "g", Test: "t", Score: 4, TimeTakenSeconds: 300, SubmittedAt: base.Add(time.Minute)},
		{AttemptID: "a3", UserID: "top", Group: "g", Test: "t", Score: 5, TimeTakenSeconds: 1200, SubmittedAt: base},
		{AttemptID: "a4", UserID: "other-test", Group: "g", Test: "x", Score: 5},
	} {
		if err := store.SubmitSummary(ctx, s); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	lb, err := store.Leaderboard(ctx, "g", "t", 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := []string{"top", "fast", "slow"}
	if len(lb.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), lb.Entries)
	}
	for i, user := range want {
		if lb.Entries[i].UserID != user {
			t.Fatalf("position %d: expected %s, got %s", i, user, lb.Entries[i].UserID)
		}
	}

	limited, _ := store.Leaderboard(ctx, "g", "t", 1)
	if len(limited.Entries) != 1 || limited.Entries[0].UserID != "top" {
		t.Fatalf("limit not applied: %+v", limited.Entries)
	}
}

func TestResultStoreKeepsResponses(t *testing.T) {
	store := NewResultStore(1)
	records := []domain.ResponseRecord{{AttemptID: "a1", QuestionID: "q1", Correct: true}}
	if err := store.SubmitResponses(context.Background(), "a1", records); err != nil {
		t.Fatalf("submit responses: %v", err)
	}
	if got := store.Responses("a1"); len(got) != 1 || !got[0].Correct {
		t.Fatalf("unexpected responses: %+v", got)
	}
}
