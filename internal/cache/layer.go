// Package cache implements the cache-aside layer in front of the listing
// endpoint: request keyed reads, best effort writes and namespace
// invalidation. Backend failures are never surfaced to callers.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"bookshelf/internal/metrics"
)

// Layer wraps a Source with timeouts, logging and metrics.
type Layer struct {
	src     Source
	ttl     time.Duration
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics

	// mu orders conditional writes against invalidation. gens holds a
	// counter per namespace, bumped on every invalidation.
	mu   sync.RWMutex
	gens map[string]uint64
}

// Options for NewLayer. Zero values pick defaults.
type Options struct {
	TTL     time.Duration
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func NewLayer(src Source, opts Options) *Layer {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Layer{
		src:     src,
		ttl:     opts.TTL,
		timeout: opts.Timeout,
		log:     opts.Logger,
		metrics: opts.Metrics,
		gens:    make(map[string]uint64),
	}
}

// TTL is the expiry used by Set and the middleware.
func (l *Layer) TTL() time.Duration { return l.ttl }

func (l *Layer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.timeout)
}

// Get reads key. Any failure counts as a miss.
func (l *Layer) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	s, err := l.src.Store(ctx)
	if err != nil {
		l.fail("get", key, err)
		l.metrics.CacheResult(false)
		return nil, false
	}
	b, ok, err := s.Get(ctx, key)
	if err != nil {
		l.fail("get", key, err)
		ok = false
	}
	l.metrics.CacheResult(ok)
	return b, ok
}

// Set stores value under key. Failures are logged and dropped.
func (l *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = l.ttl
	}
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	s, err := l.src.Store(ctx)
	if err != nil {
		l.fail("set", key, err)
		return
	}
	if err := s.Set(ctx, key, value, ttl); err != nil {
		l.fail("set", key, err)
	}
}

// Generation returns the invalidation counter of namespace. A value read
// before computing a response can be handed to SetIfCurrent.
func (l *Layer) Generation(namespace string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gens[namespace]
}

// SetIfCurrent stores value only when namespace has not been invalidated
// since gen was read. It reports whether the write was attempted.
func (l *Layer) SetIfCurrent(ctx context.Context, namespace string, gen uint64, key string, value []byte, ttl time.Duration) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.gens[namespace] != gen {
		l.log.Debug("cache set skipped, namespace invalidated", zap.String("key", key))
		return false
	}
	l.Set(ctx, key, value, ttl)
	return true
}

// InvalidateNamespace removes every entry in namespace. It runs detached
// from the caller's cancellation so a client hanging up mid-request does
// not leave stale listings behind. Responses computed before the call
// can no longer be stored through SetIfCurrent.
func (l *Layer) InvalidateNamespace(ctx context.Context, namespace string) {
	ctx, cancel := l.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.gens[namespace]++

	prefix := Prefix(namespace)
	s, err := l.src.Store(ctx)
	if err != nil {
		l.fail("invalidate", prefix, err)
		return
	}
	n, err := s.DeletePrefix(ctx, prefix)
	l.metrics.Invalidated(n)
	if err != nil {
		l.fail("invalidate", prefix, err)
		return
	}
	l.log.Debug("cache namespace invalidated", zap.String("prefix", prefix), zap.Int("keys", n))
}

func (l *Layer) fail(op, key string, err error) {
	l.metrics.CacheError(op)
	lvl := l.log.Warn
	if errors.Is(err, ErrUnavailable) {
		lvl = l.log.Debug
	}
	lvl("cache "+op+" failed", zap.String("key", key), zap.Error(err))
}
