package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = fmt.Errorf("lock already held")

// Lock is a best-effort distributed mutex backed by SET NX. It serializes
// ticks of a single backfill run across service instances; the TTL bounds
// how long a crashed holder can block the run.
type Lock struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
}

// AcquireLock takes the named lock or fails with ErrLockHeld.
func (c *Client) AcquireLock(ctx context.Context, name, token string, ttl time.Duration) (*Lock, error) {
	key := "lock:" + name
	ok, err := c.Redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed acquiring lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{client: c, key: key, token: token, ttl: ttl}, nil
}

// releaseScript deletes the key only when the stored token matches, so an
// expired lock reacquired by someone else is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Release frees the lock. Releasing a lock that expired and was taken over
// is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client.Redis, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed releasing lock %s: %w", l.key, err)
	}
	return nil
}

// Extend pushes the expiry out by the lock's TTL while work continues.
func (l *Lock) Extend(ctx context.Context) error {
	ok, err := l.client.Redis.Expire(ctx, l.key, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed extending lock %s: %w", l.key, err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}
