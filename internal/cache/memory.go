package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
)

// MemoryStore is a process-local store on bigcache. bigcache has a single
// life window instead of per-entry TTLs, so the ttl given to Set is ignored
// in favour of the one given to NewMemoryStore.
type MemoryStore struct {
	c         *bigcache.BigCache
	closeOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(ctx context.Context, ttl time.Duration) (*MemoryStore, error) {
	conf := bigcache.DefaultConfig(ttl)
	conf.CleanWindow = time.Minute
	conf.Verbose = false
	c, err := bigcache.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{c: c}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := s.c.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	return s.c.Set(key, value)
}

func (s *MemoryStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var keys []string
	it := s.c.Iterator()
	for it.SetNext() {
		entry, err := it.Value()
		if err != nil {
			continue
		}
		if strings.HasPrefix(entry.Key(), prefix) {
			keys = append(keys, entry.Key())
		}
	}

	removed := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		err := s.c.Delete(k)
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			continue
		}
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *MemoryStore) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.c.Close() })
	return err
}
