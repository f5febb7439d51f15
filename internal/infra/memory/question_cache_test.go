package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"survey-analytics-service/internal/domain"
)

func TestQuestionCacheCaches(t *testing.T) {
	loader := &countingLoader{QuestionLoader: seededStore(t)}
	cache := NewQuestionCache(loader, time.Minute)

	if _, err := cache.Question(context.Background(), "q1"); err != nil {
		t.Fatalf("get question: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls.Load())
	}

	q, err := cache.Question(context.Background(), "q1")
	if err != nil {
		t.Fatalf("get question 2: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}
	if q.Type != domain.QuestionRating {
		t.Fatalf("unexpected question %+v", q)
	}
}

func TestQuestionCacheExpires(t *testing.T) {
	loader := &countingLoader{QuestionLoader: seededStore(t)}
	cache := NewQuestionCache(loader, time.Minute)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	if _, err := cache.Question(context.Background(), "q1"); err != nil {
		t.Fatalf("get question: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.Question(context.Background(), "q1"); err != nil {
		t.Fatalf("get question after ttl: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.calls.Load())
	}
}

func TestQuestionCacheMissingQuestion(t *testing.T) {
	cache := NewQuestionCache(seededStore(t), time.Minute)
	_, err := cache.Question(context.Background(), "nope")
	if !errors.Is(err, domain.ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
}

type countingLoader struct {
	QuestionLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	l.calls.Add(1)
	return l.QuestionLoader.LoadQuestion(ctx, questionID)
}

func seededStore(t *testing.T) *RecordStore {
	t.Helper()
	store := NewRecordStore()
	store.AddSurvey(domain.Survey{ID: "sv1", OwnerID: "u1", Title: "Onboarding", Status: domain.SurveyPublished})
	if err := store.AddQuestion(domain.Question{ID: "q1", SurveyID: "sv1", Text: "How easy was it?", Type: domain.QuestionRating}); err != nil {
		t.Fatalf("add question: %v", err)
	}
	return store
}
