package config

import (
    "strings"
    "time"
)

// CacheConfig drives the Redis response cache and the existing-codes
// index.  Cached operator reads are keyed per theater generation, so a
// provisioning write drops every cached list for that theater at once.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration
    KeyStrategy  string // route, route_query, method_route or method_route_query
    Prefix       string // response cache keys
    GenPrefix    string // per-theater generation counters
    IndexPrefix  string // existing-codes index sets
    MaxBodyBytes int    // larger responses are served but not cached
}

func LoadCacheConfig() CacheConfig {
    c := CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      methodSet(envStr("CACHE_METHODS", "GET")),
        TTL:          envDur("CACHE_TTL", 30*time.Second),
        KeyStrategy:  strings.ToLower(envStr("CACHE_KEY_STRATEGY", "route_query")),
        Prefix:       envStr("CACHE_PREFIX", "cache"),
        GenPrefix:    envStr("CACHE_GEN_PREFIX", "cache:gen"),
        IndexPrefix:  envStr("QR_INDEX_PREFIX", "qr:index"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
    if c.TTL <= 0 { c.TTL = 30 * time.Second }
    return c
}

// methodSet turns "get, head" into {GET, HEAD}.
func methodSet(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
            m[p] = true
        }
    }
    return m
}
