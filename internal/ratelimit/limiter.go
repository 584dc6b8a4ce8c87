package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/pxwallet/internal/config"
)

const (
	keyMoneyUser = "pxwallet:money:user:%s"
	keySweepUser = "pxwallet:sweep:user:%s"
)

// MoneyLimiter throttles top-ups, withdrawals, transfers and checkouts per user.
// A nil limiter allows everything.
type MoneyLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewMoneyLimiter(client *redis.Client, cfg config.Config) (*MoneyLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limit requires REDIS_ADDR")
	}
	if limitCfg.MoneyRate <= 0 || limitCfg.MoneyBurst <= 0 {
		return nil, errors.New("money rate limit must be positive")
	}
	return &MoneyLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.MoneyRate,
		burst:  limitCfg.MoneyBurst,
	}, nil
}

func (l *MoneyLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *MoneyLimiter) AllowUser(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyMoneyUser, strings.TrimSpace(userID)), l.rate, l.burst)
}

// SweepLocker keeps two workers from sweeping the same user at once.
// Without redis every lock is granted.
type SweepLocker struct {
	locker *Locker
	ttl    time.Duration
}

func NewSweepLocker(client *redis.Client, cfg config.Config) *SweepLocker {
	if client == nil {
		return nil
	}
	ttl := cfg.RateLimit.SweepLockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SweepLocker{locker: NewLocker(client), ttl: ttl}
}

func (l *SweepLocker) TryLockUser(ctx context.Context, userID string) (string, bool, error) {
	if l == nil || l.locker == nil {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keySweepUser, strings.TrimSpace(userID)), l.ttl)
}

func (l *SweepLocker) ReleaseUser(ctx context.Context, userID, token string) error {
	if l == nil || l.locker == nil {
		return nil
	}
	return l.locker.Release(ctx, fmt.Sprintf(keySweepUser, strings.TrimSpace(userID)), token)
}
