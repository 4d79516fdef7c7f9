// Package cache keeps the per-theater existing-codes index in Redis and
// the generation counter that scopes cached operator responses.
package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/theater-qr-provisioning/internal/config"
)

// populated marks an index set that was loaded but holds no names; Redis
// drops empty sets.
const populated = "\x00"

// Index is a Redis set of provisioned QR names per theater.  A nil client
// turns it into a pass-through to the loader.
type Index struct {
	rdb *redis.Client
	cfg config.CacheConfig
	ttl time.Duration
}

func NewIndex(rdb *redis.Client, cfg config.CacheConfig, ttl time.Duration) *Index {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Index{rdb: rdb, cfg: cfg, ttl: ttl}
}

func (x *Index) setKey(theaterID uint64) string {
	return x.cfg.IndexPrefix + ":" + strconv.FormatUint(theaterID, 10)
}

// GenerationKey names the counter bumped on every write for a theater.
func GenerationKey(cfg config.CacheConfig, theaterID uint64) string {
	return cfg.GenPrefix + ":" + strconv.FormatUint(theaterID, 10)
}

// Provisioned returns the set of names with a code.  A cold set is filled
// from load.
func (x *Index) Provisioned(ctx context.Context, theaterID uint64, load func(context.Context) ([]string, error)) (map[string]struct{}, error) {
	if x == nil || x.rdb == nil {
		return fromNames(load(ctx))
	}
	key := x.setKey(theaterID)
	members, err := x.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(members) > 0 {
		set := make(map[string]struct{}, len(members))
		for _, m := range members {
			if m != populated {
				set[m] = struct{}{}
			}
		}
		return set, nil
	}

	names, err := load(ctx)
	if err != nil {
		return nil, err
	}
	args := make([]interface{}, 0, len(names)+1)
	args = append(args, populated)
	for _, n := range names {
		args = append(args, n)
	}
	pipe := x.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, args...)
	pipe.Expire(ctx, key, x.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		// the names are still correct; only the fill failed
		config.LogError(config.GetLogger(), "cache", "Provisioned", "fill index", key, err)
	}
	return fromNames(names, nil)
}

// Invalidate drops the index set and bumps the theater generation so
// cached responses for the theater stop matching.
func (x *Index) Invalidate(ctx context.Context, theaterID uint64) error {
	if x == nil || x.rdb == nil {
		return nil
	}
	pipe := x.rdb.TxPipeline()
	pipe.Del(ctx, x.setKey(theaterID))
	pipe.Incr(ctx, GenerationKey(x.cfg, theaterID))
	_, err := pipe.Exec(ctx)
	return err
}

// Generation returns the current write generation of a theater, zero when
// none was recorded.
func Generation(ctx context.Context, rdb *redis.Client, cfg config.CacheConfig, theaterID uint64) (int64, error) {
	if rdb == nil {
		return 0, nil
	}
	n, err := rdb.Get(ctx, GenerationKey(cfg, theaterID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func fromNames(names []string, err error) (map[string]struct{}, error) {
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set, nil
}
