package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/portfolio-backend/internal/config"
)

// bucketScript refills and takes one token from the bucket stored at
// KEYS[1].  Time is read from the Redis server so every API instance
// shares one clock.  Returns {allowed, remaining, retry_ms}.
var bucketScript = redis.NewScript(`
local cap, per, every_ms, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4])
local t = redis.call('TIME')
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local b = redis.call('HMGET', KEYS[1], 'n', 'ts')
local n, ts = tonumber(b[1]), tonumber(b[2])
if n == nil then n, ts = cap, now end

local steps = math.floor(math.max(0, now - ts) / every_ms)
if steps > 0 then
  n = math.min(cap, n + steps * per)
  ts = ts + steps * every_ms
end

local ok, wait = 0, 0
if n >= 1 then
  ok, n = 1, n - 1
else
  wait = math.max(0, every_ms - (now - ts))
end
redis.call('HSET', KEYS[1], 'n', n, 'ts', ts)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, n, wait}
`)

// Decision is the outcome of one limiter check.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// RateLimiter is a Redis token bucket shared by all API instances.
type RateLimiter struct {
	cfg    config.RateLimitConfig
	rdb    *redis.Client
	logger *slog.Logger
}

// Allow takes one token from key's bucket.
func (l *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := bucketScript.Run(ctx, l.rdb, []string{key},
		l.cfg.Capacity, l.cfg.RefillTokens, l.cfg.RefillInterval.Milliseconds(), int64(l.cfg.TTL/time.Second)).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script result %v", res)
	}
	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  res[1],
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests per key (see rateKey).  Without a Redis
// client, or on any Redis error, requests pass through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	l := &RateLimiter{cfg: cfg, rdb: rdb, logger: logger}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg.Prefix, cfg.KeyStrategy, c)
			d, err := l.Allow(c.Request().Context(), key)
			if err != nil {
				logger.Warn("ratelimit: redis unavailable, allowing request", "key", key, "err", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.Allowed {
				return next(c)
			}

			secs := retrySeconds(d.RetryAfter)
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				logger.Info("ratelimit: blocked", "key", key, "retry_after", d.RetryAfter)
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"success": false,
				"error":   "TooManyRequests",
				"message": fmt.Sprintf("Rate limit exceeded, retry in %ds", secs),
			})
		}
	}
}

// retrySeconds rounds up so clients never retry early.
func retrySeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// keyParts maps a strategy name to the request attributes it keys on.
var keyParts = map[string][]string{
	"ip":       {"ip"},
	"user":     {"user"},
	"route":    {"route"},
	"ip_user":  {"ip", "user"},
	"ip_route": {"ip", "route"},
}

// rateKey builds "prefix:attr:value:..." for the strategy.  Unknown
// strategies key on ip, user and route together.
func rateKey(prefix, strategy string, c echo.Context) string {
	attrs, ok := keyParts[strings.ToLower(strategy)]
	if !ok {
		attrs = []string{"ip", "user", "route"}
	}
	parts := []string{prefix}
	for _, a := range attrs {
		var v string
		switch a {
		case "ip":
			if v = c.RealIP(); v == "" {
				v = "unknown"
			}
		case "user":
			v = userID(c)
		case "route":
			v = c.Request().Method + " " + c.Path()
		}
		parts = append(parts, a, v)
	}
	return strings.Join(parts, ":")
}
