package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds refresh throttle tuning parameters.
type Config struct {
	MaxRefreshAttempts int
	RefreshCooldown    time.Duration
}

// Limiter enforces a fixed-window per-family refresh budget using Redis
// counters. It is an abuse brake, not a security control: the rotation
// protocol stays correct without it.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func refreshKey(familyID string) string {
	return "tlrate:rf:" + familyID
}

// CheckRefresh counts one refresh attempt against the family's window
// budget. Returns ErrRateLimited once the budget is exhausted.
func (l *Limiter) CheckRefresh(ctx context.Context, familyID string) error {
	count, err := l.incrementWithTTL(ctx, refreshKey(familyID), l.config.RefreshCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
