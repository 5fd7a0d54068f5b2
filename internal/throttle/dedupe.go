package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupeWindow is how long a delivered message id is remembered.
const DedupeWindow = 24 * time.Hour

// Deduper suppresses webhook redeliveries of the same message id.
type Deduper interface {
	// FirstSeen records id and reports whether it had not been seen within
	// the window.
	FirstSeen(ctx context.Context, id string) (bool, error)
}

type MemoryDeduper struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryDeduper(window time.Duration) *MemoryDeduper {
	if window <= 0 {
		window = DedupeWindow
	}
	return &MemoryDeduper{window: window, now: time.Now, seen: make(map[string]time.Time)}
}

func (d *MemoryDeduper) FirstSeen(_ context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}

	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if expires, ok := d.seen[id]; ok && now.Before(expires) {
		return false, nil
	}
	d.seen[id] = now.Add(d.window)
	if len(d.seen) > 50_000 {
		for k, exp := range d.seen {
			if !now.Before(exp) {
				delete(d.seen, k)
			}
		}
	}
	return true, nil
}

type RedisDeduper struct {
	client redis.UniversalClient
	window time.Duration
	prefix string
}

func NewRedisDeduper(client redis.UniversalClient, window time.Duration) *RedisDeduper {
	if window <= 0 {
		window = DedupeWindow
	}
	return &RedisDeduper{client: client, window: window, prefix: "faqbot:wamid:"}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, d.prefix+id, 1, d.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record message id: %w", err)
	}
	return ok, nil
}
