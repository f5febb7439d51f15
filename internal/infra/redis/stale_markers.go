package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// StaleMarkers is a Redis implementation of app.StaleMarkers so every instance
// sharing the aggregate store also shares stale flags.
// A flag is a plain key: {prefix}:stale:{target}.
type StaleMarkers struct {
	client *redis.Client
	prefix string
}

func NewStaleMarkers(client *redis.Client, prefix string) *StaleMarkers {
	return &StaleMarkers{client: client, prefix: prefix}
}

func (m *StaleMarkers) MarkStale(ctx context.Context, key string) error {
	return m.client.Set(ctx, m.key(key), "1", 0).Err()
}

func (m *StaleMarkers) ClearStale(ctx context.Context, key string) error {
	return m.client.Del(ctx, m.key(key)).Err()
}

func (m *StaleMarkers) IsStale(ctx context.Context, key string) (bool, error) {
	n, err := m.client.Exists(ctx, m.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *StaleMarkers) key(target string) string {
	return m.prefix + ":stale:" + target
}
