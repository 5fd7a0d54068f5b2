package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter enforces a minimum interval between accepted events per key.
type Limiter interface {
	// Allow reports whether an event for key is accepted. Only accepted
	// events move the window; a rejected one does not extend it.
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter keeps last-accepted timestamps in process memory. It is only
// correct for a single instance.
type MemoryLimiter struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryLimiter(interval time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		interval: interval,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// WithClock replaces the time source.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.interval <= 0 {
		return true, nil
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, ok := l.last[key]; ok && now.Sub(prev) < l.interval {
		return false, nil
	}
	l.last[key] = now
	if len(l.last) > 10_000 {
		l.prune(now)
	}
	return true, nil
}

func (l *MemoryLimiter) prune(now time.Time) {
	for k, t := range l.last {
		if now.Sub(t) >= l.interval {
			delete(l.last, k)
		}
	}
}

// RedisLimiter shares the window across instances with SET NX PX: the key
// exists exactly as long as the sender is throttled.
type RedisLimiter struct {
	client   redis.UniversalClient
	interval time.Duration
	prefix   string
}

func NewRedisLimiter(client redis.UniversalClient, interval time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, interval: interval, prefix: "faqbot:ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.interval <= 0 {
		return true, nil
	}
	ok, err := l.client.SetNX(ctx, l.prefix+key, time.Now().UnixMilli(), l.interval).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return ok, nil
}
