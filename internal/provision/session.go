package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

// SessionGuard admits at most one provisioning submission per operator
// session.  Acquire returns ErrSubmissionInFlight while another submission
// for the same session holds the guard.
type SessionGuard interface {
	Acquire(ctx context.Context, session string) (release func(), err error)
}

// LocalSessionGuard is an in-process guard used when Redis is unavailable
// or in a single-instance deployment.
type LocalSessionGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalSessionGuard() *LocalSessionGuard {
	return &LocalSessionGuard{held: make(map[string]struct{})}
}

func (g *LocalSessionGuard) Acquire(_ context.Context, session string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[session]; busy {
		return nil, ErrSubmissionInFlight
	}
	g.held[session] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, session)
			g.mu.Unlock()
		})
	}, nil
}

// RedisSessionGuard shares the guard across API instances through a
// redislock lock.  The TTL bounds how long a crashed instance can block
// its operator.
type RedisSessionGuard struct {
	locker *redislock.Client
	ttl    time.Duration
}

func NewRedisSessionGuard(locker *redislock.Client, ttl time.Duration) *RedisSessionGuard {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisSessionGuard{locker: locker, ttl: ttl}
}

func (g *RedisSessionGuard) Acquire(ctx context.Context, session string) (func(), error) {
	lock, err := g.locker.Obtain(ctx, "lock:qr-submit:"+session, g.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrSubmissionInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("obtain submission lock: %w", err)
	}
	return func() {
		// the request context may already be done
		_ = lock.Release(context.Background())
	}, nil
}
