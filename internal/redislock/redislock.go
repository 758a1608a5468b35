// Package redislock provides the refresh lock shared by several processes
// through Redis.
package redislock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/guilherme-santos/calgateway/internal"
)

const (
	DefaultTTL = 30 * time.Second
	pollEvery  = 50 * time.Millisecond
	keyPrefix  = "calgateway:lock:"
)

// Only the owner of a lock may release it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// New returns a locker whose locks expire after ttl, so a crashed holder
// never blocks a pair forever.
func New(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locker{client: client, ttl: ttl, logger: internal.LoggerOrDiscard(logger)}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	key = keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("redislock: acquiring %s: %w", key, err)
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

	return func() {
		// The caller's context may already be done, release regardless.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		l.release(ctx, key, token)
	}, nil
}

// release drops the lock if token still owns it. On failure the key stays
// until its TTL runs out.
func (l *Locker) release(ctx context.Context, key, token string) {
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		l.logger.Warn("redislock: releasing lock, held until it expires", "key", key, "ttl", l.ttl, "error", err)
	}
}
