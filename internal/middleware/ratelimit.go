package middleware

import (
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/theater-qr-provisioning/internal/config"
)

// takeToken refills the bucket in whole intervals, then takes one token.
// Returns {allowed, remaining, wait_ms}.
var takeToken = redis.NewScript(`
local b = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local now, cap, step, every, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local tokens, at = tonumber(b[1]), tonumber(b[2])
if not tokens or not at then
  tokens, at = cap, now
end
local n = math.floor(math.max(0, now - at) / every)
if n > 0 then
  tokens = math.min(cap, tokens + n * step)
  at = at + n * every
end
local ok, wait = 0, 0
if tokens >= 1 then
  ok, tokens = 1, tokens - 1
else
  wait = math.max(0, every - (now - at))
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'at', at)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, tokens, wait}
`)

// decision is one bucket answer.
type decision struct {
    allowed   bool
    remaining int64
    wait      time.Duration
}

func parseDecision(v any) (decision, error) {
    arr, ok := v.([]any)
    if !ok || len(arr) != 3 {
        return decision{}, fmt.Errorf("unexpected limiter reply %#v", v)
    }
    nums := make([]int64, 3)
    for i, x := range arr {
        n, ok := x.(int64)
        if !ok {
            return decision{}, fmt.Errorf("limiter reply field %d is %T", i, x)
        }
        nums[i] = n
    }
    return decision{allowed: nums[0] == 1, remaining: nums[1], wait: time.Duration(nums[2]) * time.Millisecond}, nil
}

// NewTokenBucket limits requests with a Redis token bucket.  The bucket key
// is assembled from the parts named in cfg.KeyStrategy, joined by "_"
// (ip, user, route, theater).  Without Redis, or when disabled, every
// request passes; a Redis error lets the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    parts := keyParts(cfg.KeyStrategy)
    limit := strconv.Itoa(cfg.Capacity)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg.Prefix, parts, c)
            reply, err := takeToken.Run(c.Request().Context(), rdb, []string{key},
                time.Now().UnixMilli(),
                cfg.Capacity,
                cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(),
                int64(cfg.TTL/time.Second),
            ).Result()
            if err != nil {
                config.LogError(config.GetLogger(), "middleware", "NewTokenBucket", "take token", key, err)
                return next(c)
            }
            d, err := parseDecision(reply)
            if err != nil {
                config.LogError(config.GetLogger(), "middleware", "NewTokenBucket", "parse reply", key, err)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", limit)
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if d.allowed {
                return next(c)
            }

            secs := int((d.wait + time.Second - 1) / time.Second)
            h.Set("Retry-After", strconv.Itoa(secs))
            if cfg.Debug {
                config.GetLogger().WithField("key", key).WithField("wait", d.wait.String()).Info("rate limited")
            }
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "rate limit exceeded",
                "retry_after": secs,
            })
        }
    }
}

// NewSubmitLimiter is the stricter bucket in front of provisioning: one per
// operator and theater, since every submission renders a batch of images.
func NewSubmitLimiter(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    s := cfg.Submit()
    s.KeyStrategy = "user_theater"
    return NewTokenBucket(s, rdb)
}

// keyParts splits a strategy such as "ip_user_route".  Unknown parts are
// dropped; an empty result falls back to ip, user and route.
func keyParts(strategy string) []string {
    var out []string
    for _, p := range strings.Split(strings.ToLower(strategy), "_") {
        switch p {
        case "ip", "user", "route", "theater":
            out = append(out, p)
        }
    }
    if len(out) == 0 {
        return []string{"ip", "user", "route"}
    }
    return out
}

func rateKey(prefix string, parts []string, c echo.Context) string {
    key := []string{prefix}
    for _, p := range parts {
        var v string
        switch p {
        case "ip":
            v = c.RealIP()
        case "user":
            v = userKey(c)
        case "route":
            v = c.Request().Method + " " + c.Path()
        case "theater":
            v = c.Param("theater_id")
        }
        if v == "" {
            v = "-"
        }
        key = append(key, p, v)
    }
    return strings.Join(key, ":")
}
