package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease keys hold a random token so only the holder can renew or release them.
var (
	renewLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// TargetLeases is a Redis implementation of app.TargetLeases. A lease is the key
// {prefix}:lock:{target}, taken with SET NX PX and renewed while held, so
// instances sharing the aggregate store never recompute one target at once.
type TargetLeases struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewTargetLeases expires an abandoned lease after ttl; waiters poll every ttl/20.
func NewTargetLeases(client *redis.Client, prefix string, ttl time.Duration) *TargetLeases {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	retry := ttl / 20
	if retry < 5*time.Millisecond {
		retry = 5 * time.Millisecond
	}
	return &TargetLeases{client: client, prefix: prefix, ttl: ttl, retry: retry}
}

func (l *TargetLeases) Acquire(ctx context.Context, target string) (context.Context, func(), error) {
	key := l.key(target)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, nil, fmt.Errorf("acquire lease %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-ticker.C:
		}
	}

	leaseCtx, cancel := context.WithCancel(ctx)
	renewed := make(chan struct{})
	go l.keepAlive(leaseCtx, cancel, key, token, renewed)

	release := func() {
		cancel()
		<-renewed
		// Best effort: an unreleased lease expires after ttl.
		_ = releaseLease.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err()
	}
	return leaseCtx, release, nil
}

// keepAlive extends the lease every ttl/3 and cancels ctx once it is lost.
func (l *TargetLeases) keepAlive(ctx context.Context, cancel context.CancelFunc, key, token string, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := renewLease.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			if ctx.Err() != nil {
				return
			}
			if err != nil || n == 0 {
				cancel()
				return
			}
		}
	}
}

func (l *TargetLeases) key(target string) string {
	return l.prefix + ":lock:" + target
}
