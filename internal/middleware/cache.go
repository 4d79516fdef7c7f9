package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/hex"
    "encoding/json"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/theater-qr-provisioning/internal/cache"
    "github.com/iliyamo/theater-qr-provisioning/internal/config"
)

// cachedResponse is what a hit replays.  Only the content type is kept;
// handlers on cached routes set no other headers.
type cachedResponse struct {
    Status      int    `json:"s"`
    ContentType string `json:"ct"`
    Body        []byte `json:"b"`
}

// bodyRecorder tees the response into a buffer up to limit bytes.
type bodyRecorder struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int
    truncated bool
}

func (r *bodyRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
    if !r.truncated {
        if r.limit > 0 && r.buf.Len()+len(b) > r.limit {
            r.truncated = true
            r.buf.Reset()
        } else {
            r.buf.Write(b)
        }
    }
    return r.ResponseWriter.Write(b)
}

// cacheKeyFrom hashes everything that makes two responses differ: the
// caller (responses are scoped), the route with its path params, and
// optionally method and query.  gen is the theater write generation, so a
// provisioning write orphans every cached response of that theater.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context, gen int64) string {
    r := c.Request()
    strategy := strings.ToLower(cfg.KeyStrategy)

    var b strings.Builder
    b.WriteString(strconv.FormatInt(gen, 10))
    b.WriteString("|" + userKey(c) + "|" + Role(c))
    if strings.HasPrefix(strategy, "method_") {
        b.WriteString("|" + r.Method)
    }
    b.WriteString("|" + c.Path())
    values := c.ParamValues()
    for i, name := range c.ParamNames() {
        if i < len(values) {
            b.WriteString("|" + name + "=" + values[i])
        }
    }
    if strategy != "route" && strategy != "method_route" {
        b.WriteString("|?" + r.URL.RawQuery)
    }
    sum := sha1.Sum([]byte(b.String()))
    return cfg.Prefix + ":" + hex.EncodeToString(sum[:])
}

// NewRedisCache replays successful reads from Redis.  On routes with
// theaterParam the key carries the theater generation kept by cache.Index.
// Redis errors degrade to an uncached request.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, theaterParam string) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()

            var gen int64
            if theaterParam != "" {
                id, err := strconv.ParseUint(c.Param(theaterParam), 10, 64)
                if err != nil {
                    return next(c)
                }
                if gen, err = cache.Generation(ctx, rdb, cfg, id); err != nil {
                    return next(c)
                }
            }
            key := cacheKeyFrom(cfg, c, gen)

            if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
                var hit cachedResponse
                if json.Unmarshal(raw, &hit) == nil {
                    c.Response().Header().Set("X-Cache", "HIT")
                    return c.Blob(hit.Status, hit.ContentType, hit.Body)
                }
            }

            rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.truncated {
                return nil
            }

            entry, err := json.Marshal(cachedResponse{
                Status:      rec.status,
                ContentType: c.Response().Header().Get(echo.HeaderContentType),
                Body:        rec.buf.Bytes(),
            })
            if err != nil {
                return nil
            }
            // the request context may already be cancelled once the client has its body
            if err := rdb.SetEx(context.Background(), key, entry, ttl).Err(); err != nil {
                config.LogError(config.GetLogger(), "middleware", "NewRedisCache", "store response", key, err)
            }
            return nil
        }
    }
}
