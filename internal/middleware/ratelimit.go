package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/library-borrowing/internal/config"
)

// tokenBucket refills ARGV[3] tokens every ARGV[4] ms up to ARGV[2] and
// takes one.  It returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'refilled_at')
local tokens = tonumber(state[1]) or capacity
local refilled_at = tonumber(state[2]) or now

if interval > 0 and refill > 0 then
	local steps = math.floor(math.max(0, now - refilled_at) / interval)
	if steps > 0 then
		tokens = math.min(capacity, tokens + steps * refill)
		refilled_at = refilled_at + steps * interval
	end
end

local allowed, wait = 0, 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	wait = math.max(0, interval - (now - refilled_at))
end

redis.call('HSET', key, 'tokens', tokens, 'refilled_at', refilled_at)
redis.call('EXPIRE', key, ttl)
return {allowed, tokens, wait}
`)

type bucketResult struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

// parseBucket decodes the script reply.  ok is false for anything that is
// not a three element array.
func parseBucket(v interface{}) (r bucketResult, ok bool) {
	arr, isArr := v.([]interface{})
	if !isArr || len(arr) != 3 {
		return r, false
	}
	r.allowed = toInt64(arr[0]) == 1
	r.remaining = toInt64(arr[1])
	r.retry = time.Duration(toInt64(arr[2])) * time.Millisecond
	return r, true
}

// retryAfterSeconds rounds up so clients never retry too early.
func (r bucketResult) retryAfterSeconds() int {
	secs := int(math.Ceil(r.retry.Seconds()))
	if secs < 0 {
		return 0
	}
	return secs
}

// NewTokenBucket limits requests with a token bucket kept in Redis.  It
// must run after JWTAuth so that user-based key strategies see the caller.
// With limiting disabled or no Redis client the middleware is a no-op, and
// Redis errors let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			reply, err := tokenBucket.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL/time.Second),
			).Result()
			if err != nil {
				slog.Warn("ratelimit: script failed", "key", key, "err", err)
				return next(c)
			}
			res, ok := parseBucket(reply)
			if !ok {
				slog.Warn("ratelimit: unexpected reply", "key", key, "reply", reply)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if res.allowed {
				return next(c)
			}

			secs := res.retryAfterSeconds()
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				slog.Info("ratelimit: blocked", "key", key, "retry_ms", res.retry.Milliseconds())
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}

// buildRateKey joins the prefix with the parts named by the key strategy.
// Strategies are underscore separated lists of ip, user and route; unknown
// strategies fall back to all three.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	strategy := strings.ToLower(strings.TrimSpace(cfg.KeyStrategy))
	names := strings.Split(strategy, "_")
	for _, n := range names {
		if n != "ip" && n != "user" && n != "route" {
			names = []string{"ip", "user", "route"}
			break
		}
	}

	parts := []string{cfg.Prefix}
	for _, n := range names {
		switch n {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", currentUserID(c))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		}
	}
	return strings.Join(parts, ":")
}

func currentUserID(c echo.Context) string {
	if uid, _, ok := Identity(c); ok {
		return strconv.FormatUint(uid, 10)
	}
	return "anon"
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
