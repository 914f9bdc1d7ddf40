package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backoff bounds the wait between failed connection attempts.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff starts at 250ms and doubles up to 30s.
func DefaultBackoff() Backoff {
	return Backoff{Initial: 250 * time.Millisecond, Max: 30 * time.Second}
}

// delay returns the wait after the given number of consecutive failures.
func (b Backoff) delay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	d := b.Initial
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

type dialFunc func(ctx context.Context) (goredis.UniversalClient, error)

// Connector lazily opens one Redis connection for the whole process. The
// client is created on first use and checked with PING. After a failed
// attempt callers get ErrUnavailable until the backoff delay has passed,
// then the next caller tries again.
type Connector struct {
	dial    dialFunc
	backoff Backoff
	log     *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	store    *RedisStore
	failures int
	retryAt  time.Time
	closed   bool
}

var _ Source = (*Connector)(nil)

// NewConnector parses a redis:// URL. Nothing is dialed until Store is
// called.
func NewConnector(redisURL string, backoff Backoff, log *zap.Logger) (*Connector, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	dial := func(ctx context.Context) (goredis.UniversalClient, error) {
		rdb := goredis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return rdb, nil
	}
	return newConnector(dial, backoff, log), nil
}

func newConnector(dial dialFunc, backoff Backoff, log *zap.Logger) *Connector {
	if log == nil {
		log = zap.NewNop()
	}
	if backoff.Initial <= 0 || backoff.Max < backoff.Initial {
		backoff = DefaultBackoff()
	}
	return &Connector{dial: dial, backoff: backoff, log: log, now: time.Now}
}

// Store returns the shared RedisStore, connecting if needed.
func (c *Connector) Store(ctx context.Context) (Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.store != nil {
		return c.store, nil
	}
	if now := c.now(); now.Before(c.retryAt) {
		return nil, ErrUnavailable
	}

	rdb, err := c.dial(ctx)
	if err != nil {
		c.failures++
		wait := c.backoff.delay(c.failures)
		c.retryAt = c.now().Add(wait)
		c.log.Warn("redis connect failed",
			zap.Error(err),
			zap.Int("failures", c.failures),
			zap.Duration("retry_in", wait))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if c.failures > 0 {
		c.log.Info("redis connected", zap.Int("after_failures", c.failures))
	}
	c.failures = 0
	c.retryAt = time.Time{}
	c.store = NewRedisStore(rdb)
	return c.store, nil
}

// Close releases the client. It is safe to call more than once.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
