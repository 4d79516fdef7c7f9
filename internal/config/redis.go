package config

import (
    "context"
    "crypto/tls"
    "net"
    "os"
    "time"

    "github.com/bsm/redislock"
    "github.com/redis/go-redis/v9"
)

// RedisConfig locates the optional Redis server.
type RedisConfig struct {
    Addr        string
    Password    string
    DB          int
    PoolSize    int
    TLS         bool
    Attempts    int           // pings before giving up
    DialTimeout time.Duration // per ping
}

// LoadRedisConfig reads REDIS_ADDR, or REDIS_HOST with REDIS_PORT, and the
// REDIS_* knobs.
func LoadRedisConfig() RedisConfig {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = net.JoinHostPort(host, port)
    }
    c := RedisConfig{
        Addr:        addr,
        Password:    os.Getenv("REDIS_PASSWORD"),
        DB:          envInt("REDIS_DB", 0),
        PoolSize:    envInt("REDIS_POOL_SIZE", 20),
        TLS:         envBool("REDIS_TLS", false),
        Attempts:    envInt("REDIS_CONNECT_ATTEMPTS", 3),
        DialTimeout: envDur("REDIS_DIAL_TIMEOUT", 2*time.Second),
    }
    if c.Attempts < 1 { c.Attempts = 1 }
    return c
}

// NewRedisClient pings the server up to Attempts times with a doubling
// pause.  It returns nil when Redis never answers; the response cache, rate
// limiter, existing-codes index and session guard then fall back to their
// Redis-less behaviour.
func NewRedisClient() *redis.Client {
    return connectRedis(LoadRedisConfig())
}

func connectRedis(cfg RedisConfig) *redis.Client {
    opts := &redis.Options{
        Addr:        cfg.Addr,
        Password:    cfg.Password,
        DB:          cfg.DB,
        PoolSize:    cfg.PoolSize,
        DialTimeout: cfg.DialTimeout,
    }
    if cfg.TLS {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(opts)

    pause := 500 * time.Millisecond
    var err error
    for attempt := 1; attempt <= cfg.Attempts; attempt++ {
        ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
        err = client.Ping(ctx).Err()
        cancel()
        if err == nil {
            GetLogger().WithField("addr", cfg.Addr).WithField("attempt", attempt).Info("redis connected")
            return client
        }
        if attempt < cfg.Attempts {
            time.Sleep(pause)
            pause *= 2
        }
    }
    GetLogger().WithField("addr", cfg.Addr).WithError(err).Warn("redis unavailable; running without cache, rate limit and shared locks")
    _ = client.Close()
    return nil
}

// NewRedisLocker wraps rdb for distributed locks.  nil in, nil out.
func NewRedisLocker(rdb *redis.Client) *redislock.Client {
    if rdb == nil {
        return nil
    }
    return redislock.New(rdb)
}
