package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned while the shared store cannot be reached.
	ErrUnavailable = errors.New("cache: store unavailable")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("cache: closed")
)

// Store is a byte store with TTLs. Implementations must be safe for
// concurrent use and return exactly the bytes passed to Set.
type Store interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix and reports how
	// many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}

// Source hands out the Store to use for one operation.
type Source interface {
	Store(ctx context.Context) (Store, error)
}

// Static is a Source that always returns the same Store.
type Static struct{ S Store }

func (s Static) Store(context.Context) (Store, error) {
	if s.S == nil {
		return nil, ErrUnavailable
	}
	return s.S, nil
}
