package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("staff schedule lock not acquired")
)

// Locker serializes booking attempts against one staff member's day. Two
// requests racing for overlapping slots always share a (staff, date) key,
// so at most one of them is inside the critical section at a time.
type Locker interface {
	WithStaffDayLock(ctx context.Context, staffID uuid.UUID, date string, fn func(ctx context.Context) error) error
}

type redisStaffDayLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStaffDayLocker creates a locker that uses a per staff-day Redis key
func NewRedisStaffDayLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisStaffDayLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisStaffDayLocker) WithStaffDayLock(ctx context.Context, staffID uuid.UUID, date string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:staffday:%s:%s", staffID.String(), date)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire staff day lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisStaffDayLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release staff day lock: %w", err)
	}
	return nil
}
