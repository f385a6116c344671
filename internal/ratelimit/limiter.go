package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/blsuntech/internal/config"
	"go.uber.org/zap"
)

const keyIntakeClient = "intake:ratelimit:%s:%s"

// Limiter throttles public write endpoints per client IP.
type Limiter struct {
	enabled bool
	rate    float64
	burst   int

	bucket *TokenBucket
	local  *LocalLimiter
	log    *zap.Logger
}

func NewLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *Limiter {
	limits := cfg.Limits
	if !limits.Enabled || limits.Rate <= 0 || limits.Burst <= 0 {
		return &Limiter{}
	}
	return &Limiter{
		enabled: true,
		rate:    limits.Rate,
		burst:   limits.Burst,
		bucket:  NewTokenBucket(client),
		local:   NewLocalLimiter(limits.Rate, limits.Burst),
		log:     log.Named("ratelimit"),
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow reports whether clientIP may call endpoint now. Redis failures fall
// back to the in-process bucket.
func (l *Limiter) Allow(ctx context.Context, endpoint, clientIP string) *RateLimitResult {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}
	}
	key := fmt.Sprintf(keyIntakeClient, strings.TrimSpace(endpoint), strings.TrimSpace(clientIP))

	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
		if err == nil {
			return res
		}
		l.log.Warn("redis rate limit check failed, using local limiter", zap.Error(err))
	}
	return l.local.Allow(key)
}
