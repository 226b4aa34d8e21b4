// Package ratelimit throttles public signup traffic per client IP with an
// atomic Redis Lua script, and caches referral dashboards.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inkwell-hq/inkwell/internal/pkg/logger"
)

// The script checks before incrementing so a denied request never consumes
// budget, and sets the TTL only when the key is fresh.
const windowLimitScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current + 1 > limit then
    return {0, current}
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
    redis.call("EXPIRE", key, ttl)
end
return {1, newVal}
`

// Limiter enforces a fixed-window per-key limit.
type Limiter struct {
	redis  *redis.Client
	script *redis.Script
	limit  int
	window time.Duration
}

// New creates a limiter allowing limit hits per window per key.
func New(client *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{
		redis:  client,
		script: redis.NewScript(windowLimitScript),
		limit:  limit,
		window: window,
	}
}

// Allow atomically checks and consumes one hit for key. Redis outages fail
// open: throttling is protection, not a gate signups may be lost to.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l == nil {
		return true
	}

	bucket := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/int64(l.window.Seconds()))
	result, err := l.script.Run(ctx, l.redis,
		[]string{bucket}, l.limit, int(l.window.Seconds())+1).Int64Slice()
	if err != nil {
		logger.Warn("rate limit check failed, allowing", "error", err)
		return true
	}
	if len(result) < 1 || result[0] != 1 {
		return false
	}
	return true
}

// Cache is a small JSON blob cache for the public referral dashboard.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates the dashboard cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{redis: client, ttl: ttl}
}

// Get returns the cached payload for key, or nil on miss or outage.
func (c *Cache) Get(ctx context.Context, key string) []byte {
	if c == nil {
		return nil
	}
	data, err := c.redis.Get(ctx, "dashboard:"+key).Bytes()
	if err != nil {
		return nil
	}
	return data
}

// Set stores a payload, best-effort.
func (c *Cache) Set(ctx context.Context, key string, payload []byte) {
	if c == nil {
		return
	}
	if err := c.redis.Set(ctx, "dashboard:"+key, payload, c.ttl).Err(); err != nil {
		logger.Debug("dashboard cache write failed", "error", err)
	}
}

// Invalidate drops a cached dashboard after its underlying data changes.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if c == nil {
		return
	}
	c.redis.Del(ctx, "dashboard:"+key)
}
