package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Limiter decides whether a key may proceed. Counters reset at the start of
// every fixed window.
type Limiter interface {
	Allow(key string) bool
}

// FixedWindowLimiter limits requests per key in a fixed time window using Redis.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration

	redisClient *redis.Client
	redisPrefix string
}

// NewRedisFixedWindowLimiter creates a Redis-backed distributed limiter.
func NewRedisFixedWindowLimiter(addr, password, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "gauge:ratelimit"
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
		redisClient: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		redisPrefix: prefix,
	}, nil
}

// Allow returns true when the key is within quota.
// On Redis failures, it fails closed and returns false.
func (l *FixedWindowLimiter) Allow(key string) bool {
	if l == nil {
		return false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	windowMs := l.window.Milliseconds()
	if windowMs <= 0 {
		return true
	}
	windowSlot := time.Now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.redisPrefix, key, windowSlot)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := fixedWindowScript.Run(ctx, l.redisClient, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return res <= int64(l.limit)
}

type memoryWindow struct {
	slot  int64
	count int
}

// MemoryFixedWindowLimiter is the single-process variant used when no Redis
// is configured. Stale windows are swept once the map grows past sweepAt.
type MemoryFixedWindowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]memoryWindow
	sweepAt int
}

// NewMemoryFixedWindowLimiter creates an in-process limiter. now may be nil.
func NewMemoryFixedWindowLimiter(limit int, window time.Duration, now func() time.Time) (*MemoryFixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryFixedWindowLimiter{
		limit:   limit,
		window:  window,
		now:     now,
		windows: make(map[string]memoryWindow),
		sweepAt: 1024,
	}, nil
}

// Allow returns true when the key is within quota for the current window.
func (l *MemoryFixedWindowLimiter) Allow(key string) bool {
	if l == nil {
		return false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	slot := l.now().UTC().UnixMilli() / l.window.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.windows) >= l.sweepAt {
		for k, w := range l.windows {
			if w.slot != slot {
				delete(l.windows, k)
			}
		}
	}
	w := l.windows[key]
	if w.slot != slot {
		w = memoryWindow{slot: slot}
	}
	w.count++
	l.windows[key] = w
	return w.count <= l.limit
}
