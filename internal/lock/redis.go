package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "event-registration:lock:"

// releaseScript deletes the lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClient is the subset of the go-redis client RedisLocker needs.
type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker is a lease-based lock shared by every replica that talks to the
// same Redis. A lease that outlives its TTL is dropped by Redis, so TTL must
// exceed the longest critical section.
type RedisLocker struct {
	client       RedisClient
	ttl          time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(client RedisClient, ttl, pollInterval time.Duration, logger *zap.Logger) *RedisLocker {
	if pollInterval <= 0 {
		pollInterval = 25 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, ttl: ttl, pollInterval: pollInterval, logger: logger}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled; release anyway.
			rctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err := releaseScript.Run(rctx, l.client, []string{redisKey}, token).Err()
			if err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn("failed to release event lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
