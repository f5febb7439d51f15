package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"survey-analytics-service/internal/domain"
	"survey-analytics-service/internal/infra/memory"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr := runMiniredis(t)
	client := newClient(mr)

	loader := &countingLoader{QuestionLoader: sampleRecords(t)}
	cache := NewQuestionCache(client, loader, time.Minute)

	q, err := cache.Question(context.Background(), "q1")
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls.Load())
	}
	if !mr.Exists("question:q1") {
		t.Fatalf("expected question hash to be cached")
	}

	// Second call should hit cache, loader not incremented.
	cached, err := cache.Question(context.Background(), "q1")
	if err != nil {
		t.Fatalf("get cached question: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls.Load())
	}
	if cached.Type != q.Type || cached.SurveyID != "sv1" || len(cached.Options) != 2 || cached.Options[1] != "No" {
		t.Fatalf("cached question mismatch: %+v", cached)
	}
}

func TestQuestionCacheExpiresWithTTL(t *testing.T) {
	mr := runMiniredis(t)
	loader := &countingLoader{QuestionLoader: sampleRecords(t)}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute)

	if _, err := cache.Question(context.Background(), "q1"); err != nil {
		t.Fatalf("get question: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := cache.Question(context.Background(), "q1"); err != nil {
		t.Fatalf("get question after ttl: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after expiry, loader calls=%d", loader.calls.Load())
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	l.calls.Add(1)
	return l.QuestionLoader.LoadQuestion(ctx, questionID)
}

func sampleRecords(t *testing.T) *memory.RecordStore {
	t.Helper()
	store := memory.NewRecordStore()
	store.AddSurvey(domain.Survey{ID: "sv1", OwnerID: "u1", Status: domain.SurveyPublished})
	err := store.AddQuestion(domain.Question{
		ID:       "q1",
		SurveyID: "sv1",
		Text:     "Would you recommend us?",
		Type:     domain.QuestionMultipleChoice,
		Options:  []string{"Yes", "No"},
	})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	return store
}

func runMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
