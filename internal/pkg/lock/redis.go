package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// refreshScript extends the TTL only while the key still holds our token.
const refreshScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("PEXPIRE", KEYS[1], ARGV[2]) else return 0 end`

const keyPrefix = "lock:"

// RedisLocker shares locks between API instances. The TTL bounds how long a
// crashed holder can keep a key; a live holder keeps extending it every
// refreshEvery until release.
type RedisLocker struct {
	client       redis.Cmdable
	ttl          time.Duration
	refreshEvery time.Duration
	newToken     func() string
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:       client,
		ttl:          ttl,
		refreshEvery: ttl / 3,
		newToken:     func() string { return uuid.NewString() },
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := l.newToken()

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	stop := make(chan struct{})
	if l.refreshEvery > 0 {
		go l.keepAlive(redisKey, token, stop)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			// The caller's ctx may already be cancelled; release must still run.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.client.Eval(releaseCtx, releaseScript, []string{redisKey}, token).Err(); err != nil {
				slog.Warn("Failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}

func (l *RedisLocker) keepAlive(redisKey, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.refreshEvery)
			held, err := l.refresh(ctx, redisKey, token)
			cancel()
			if err != nil {
				slog.Warn("Failed to refresh lock", "key", redisKey, "error", err)
				continue
			}
			if !held {
				slog.Warn("Lock lost before release", "key", redisKey)
				return
			}
		}
	}
}

// refresh reports whether the key was still ours and had its TTL extended.
func (l *RedisLocker) refresh(ctx context.Context, redisKey, token string) (bool, error) {
	n, err := l.client.Eval(ctx, refreshScript, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
