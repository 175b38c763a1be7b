package memory

import (
	"testing"

	"exam-session-service/internal/exam"
)

func TestAttemptStoreLifecycle(t *testing.T) {
	store := NewAttemptStore()
	attempt, err := exam.New(sampleBank()["physics"]["mock-1"], exam.Config{})
	if err != nil {
		t.Fatalf("new attempt: %v", err)
	}

	store.Put(attempt)
	got, ok := store.Get(attempt.ID())
	if !ok || got != attempt {
		t.Fatalf("expected attempt present")
	}
	if store.Len() != 1 {
		t.Fatalf("expected one live attempt, got %d", store.Len())
	}

	store.Delete(attempt.ID())
	if _, ok := store.Get(attempt.ID()); ok {
		t.Fatalf("expected attempt removed")
	}
}
