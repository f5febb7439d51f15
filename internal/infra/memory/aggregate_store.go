package memory

import (
	"context"
	"sync"

	"survey-analytics-service/internal/domain"
)

// AggregateStore is an in-memory implementation of app.AggregateStore.
// Aggregates are stored by value so a reader never observes a partial commit.
type AggregateStore[A domain.Aggregate] struct {
	mu         sync.RWMutex
	aggregates map[string]A
}

func NewAggregateStore[A domain.Aggregate]() *AggregateStore[A] {
	return &AggregateStore[A]{
		aggregates: make(map[string]A),
	}
}

func (s *AggregateStore[A]) Load(_ context.Context, key string) (A, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agg, ok := s.aggregates[key]
	return agg, ok, nil
}

func (s *AggregateStore[A]) Replace(_ context.Context, key string, agg A) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates[key] = agg
	return nil
}

// Delete drops the committed aggregate for key, if any.
func (s *AggregateStore[A]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.aggregates, key)
}
