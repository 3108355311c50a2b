// Package locker provides the per-user advisory lock that makes payout
// attempts for the same user mutually exclusive. The lock is acquired before
// dispatching to a rail and released on every exit path; without it two
// concurrent triggers could both pass eligibility and rely solely on the
// provider idempotency key.
package locker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTTL caps how long an in-flight marker can outlive a crashed
// process. Comfortably above the rail transfer timeout.
const DefaultTTL = 60 * time.Second

// UserLocker serializes payout attempts per user. Acquire returns false
// when another attempt holds the lock.
type UserLocker interface {
	Acquire(ctx context.Context, userID uuid.UUID) (release func(), acquired bool, err error)
}

// RedisLocker implements UserLocker with SET NX PX, so the lock holds across
// processes.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, userID uuid.UUID) (func(), bool, error) {
	key := lockKey(userID)
	ok, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire payout lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// Best-effort: the TTL reclaims the lock if the delete fails.
		if err := l.client.Del(context.Background(), key).Err(); err != nil {
			zap.L().Warn("payout lock release failed", zap.Error(err), zap.String("user_id", userID.String()))
		}
	}
	return release, true, nil
}

func lockKey(userID uuid.UUID) string {
	return "payout:lock:" + userID.String()
}

// MemoryLocker implements UserLocker in process. Used by tests and
// single-instance deployments without Redis.
type MemoryLocker struct {
	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{inFlight: make(map[uuid.UUID]struct{})}
}

func (l *MemoryLocker) Acquire(ctx context.Context, userID uuid.UUID) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.inFlight[userID]; held {
		return nil, false, nil
	}
	l.inFlight[userID] = struct{}{}
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.inFlight, userID)
	}
	return release, true, nil
}
