package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"survey-analytics-service/internal/domain"
)

// AggregateStore keeps committed aggregates as one JSON value per target:
// SET {prefix}:{target} {json}. A single SET replaces the whole record, so
// readers on any instance see either the old or the new aggregate.
type AggregateStore[A domain.Aggregate] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewAggregateStore stores aggregates under prefix. A zero ttl keeps them until replaced.
func NewAggregateStore[A domain.Aggregate](client *redis.Client, prefix string, ttl time.Duration) *AggregateStore[A] {
	return &AggregateStore[A]{client: client, prefix: prefix, ttl: ttl}
}

func (s *AggregateStore[A]) Load(ctx context.Context, key string) (A, bool, error) {
	var agg A
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return agg, false, nil
	}
	if err != nil {
		return agg, false, fmt.Errorf("get %s aggregate: %w", s.prefix, err)
	}
	if err := json.Unmarshal(raw, &agg); err != nil {
		return agg, false, fmt.Errorf("decode %s aggregate: %w", s.prefix, err)
	}
	return agg, true, nil
}

func (s *AggregateStore[A]) Replace(ctx context.Context, key string, agg A) error {
	raw, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encode %s aggregate: %w", s.prefix, err)
	}
	return s.client.Set(ctx, s.key(key), raw, s.ttl).Err()
}

func (s *AggregateStore[A]) key(target string) string {
	return s.prefix + ":" + target
}
