package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const localIdleTTL = 10 * time.Minute

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter keeps one token bucket per key in process memory. It is used
// when no Redis is configured and as the fallback when Redis is unreachable.
type LocalLimiter struct {
	rate  rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	entries   map[string]*localEntry
	lastSweep time.Time
}

func NewLocalLimiter(perSecond float64, burst int) *LocalLimiter {
	return &LocalLimiter{
		rate:    rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
		entries: make(map[string]*localEntry),
	}
}

func (l *LocalLimiter) Allow(key string) *RateLimitResult {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	entry, ok := l.entries[key]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now

	allowed := entry.limiter.AllowN(now, 1)
	remaining := entry.limiter.TokensAt(now)
	return &RateLimitResult{
		Allowed:    allowed,
		Limit:      l.burst,
		Remaining:  max(int(remaining), 0),
		RetryAfter: retryAfter(allowed, remaining, float64(l.rate)),
	}
}

// sweep drops idle keys so the map does not grow with every client seen.
func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < localIdleTTL {
		return
	}
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > localIdleTTL {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}
