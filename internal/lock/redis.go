package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

// releaseScript deletes the key only if it still holds our token, so a lease
// that outlived its TTL cannot drop someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DefaultRetryInterval is the pause between SET NX attempts.
const DefaultRetryInterval = 50 * time.Millisecond

// RedisLocker is a gradebook.Locker shared by every process using the same
// Redis.
type RedisLocker struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	maxWait time.Duration
	retry   time.Duration
}

var _ gradebook.Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker whose keys expire after ttl.
func NewRedisLocker(client redis.UniversalClient, ttl, maxWait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxWait <= 0 {
		maxWait = DefaultWait
	}
	return &RedisLocker{
		client:  client,
		prefix:  "gradebook:lock:",
		ttl:     ttl,
		maxWait: maxWait,
		retry:   DefaultRetryInterval,
	}
}

// Acquire polls SET NX until it wins or maxWait elapses.
func (r *RedisLocker) Acquire(ctx context.Context, key string) (gradebook.Lease, bool, error) {
	token := uuid.NewString()
	full := r.prefix + key
	deadline := time.Now().Add(r.maxWait)

	for {
		won, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("redis set %s: %w", full, err)
		}
		if won {
			return &redisLease{client: r.client, key: full, token: token}, true, nil
		}
		if !time.Now().Add(r.retry).Before(deadline) {
			return nil, false, nil
		}

		timer := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false, ctx.Err()
		case <-timer.C:
		}
	}
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Release deletes the key if the lease still owns it.
func (l *redisLease) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release %s: %w", l.key, err)
	}
	return nil
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
