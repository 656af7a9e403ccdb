package service

import (
	"context"
	"sync"
	"time"

	"storefront-service/internal/redisclient"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

const userLockTTL = 10 * time.Second

// userLocks serializes multi-step cart and checkout sequences per user.
// The in-process mutex covers a single instance; the Redis lock, when a
// client is configured, extends that across instances (best effort: a
// Redis outage degrades to per-instance locking rather than failing the
// request).
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
	redis *redisclient.Client
}

func newUserLocks(redis *redisclient.Client) *userLocks {
	return &userLocks{
		locks: make(map[int64]*sync.Mutex),
		redis: redis,
	}
}

// lock blocks until the user's lock is held and returns the unlock func.
func (l *userLocks) lock(ctx context.Context, userID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()

	if l.redis == nil {
		return m.Unlock
	}

	acquired := false
	for i := 0; i < 20 && ctx.Err() == nil; i++ {
		ok, err := l.redis.AcquireUserLock(ctx, userID, userLockTTL)
		if err != nil {
			util.GetLogger().Warn("Redis user lock unavailable, proceeding with local lock",
				zap.Int64("user_id", userID), zap.Error(err))
			break
		}
		if ok {
			acquired = true
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	return func() {
		if acquired {
			if err := l.redis.ReleaseUserLock(context.Background(), userID); err != nil {
				util.GetLogger().Warn("Failed to release Redis user lock",
					zap.Int64("user_id", userID), zap.Error(err))
			}
		}
		m.Unlock()
	}
}
