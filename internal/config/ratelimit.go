package config

import "time"

// RateLimitConfig sizes the Redis token buckets.  The general bucket
// guards every API route; the submit bucket is a stricter one applied to
// code provisioning, which renders and uploads images per seat.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int           // burst size
    RefillTokens   int           // tokens added per interval
    RefillInterval time.Duration
    TTL            time.Duration // idle buckets expire after this
    KeyStrategy    string        // "_"-joined parts: ip, user, route, theater
    Prefix         string
    Debug          bool

    SubmitCapacity       int
    SubmitRefillInterval time.Duration
}

func LoadRateLimitConfig() RateLimitConfig {
    c := RateLimitConfig{
        Enabled:              envBool("RATE_LIMIT_ENABLED", true),
        Capacity:             atLeast(envInt("RATE_LIMIT_CAPACITY", 60), 1),
        RefillTokens:         atLeast(envInt("RATE_LIMIT_REFILL_TOKENS", 1), 1),
        RefillInterval:       positive(envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second), time.Second),
        KeyStrategy:          envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:               envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:                envBool("RATE_LIMIT_DEBUG", false),
        SubmitCapacity:       atLeast(envInt("RATE_LIMIT_SUBMIT_CAPACITY", 5), 1),
        SubmitRefillInterval: positive(envDur("RATE_LIMIT_SUBMIT_REFILL_INTERVAL", 12*time.Second), 12*time.Second),
    }
    // a bucket must outlive a full refill of either limiter
    c.TTL = max(envDur("RATE_LIMIT_TTL", 10*time.Minute), 5*c.RefillInterval, 5*c.SubmitRefillInterval)
    return c
}

// Submit returns the bucket settings used for provisioning submissions.
func (c RateLimitConfig) Submit() RateLimitConfig {
    s := c
    s.Capacity = c.SubmitCapacity
    s.RefillTokens = 1
    s.RefillInterval = c.SubmitRefillInterval
    s.Prefix = c.Prefix + ":submit"
    return s
}

func atLeast(n, floor int) int {
    if n < floor {
        return floor
    }
    return n
}

func positive(d, def time.Duration) time.Duration {
    if d <= 0 {
        return def
    }
    return d
}
