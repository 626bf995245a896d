package storage

import (
	"context"
	"fmt"

	"github.com/coocood/freecache"
)

// Cached wraps a store with an in-memory byte cache of at most maxBytes.
// Values are replayed byte-identically, so reads through the cache are
// indistinguishable from reads against the underlying store.  Entries too
// large for the cache simply stay uncached.
func Cached(store Store, maxBytes int) Store {
	return &cachedStore{
		store: store,
		cache: freecache.NewCache(maxBytes),
	}
}

type cachedStore struct {
	store Store
	cache *freecache.Cache
}

func (s *cachedStore) ReadAll(ctx context.Context, key string) ([]byte, error) {
	if data, err := s.cache.Get([]byte(key)); err == nil {
		return data, nil
	}
	data, err := s.store.ReadAll(ctx, key)
	if err != nil {
		return nil, err
	}
	// no expiry: stores are immutable for the lifetime of a read session
	s.cache.Set([]byte(key), data, 0)
	return data, nil
}

func (s *cachedStore) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := s.cache.Get([]byte(key)); err == nil {
		return true, nil
	}
	return s.store.Exists(ctx, key)
}

func (s *cachedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.store.List(ctx, prefix)
}

func (s *cachedStore) Close() error {
	s.cache.Clear()
	return s.store.Close()
}

func (s *cachedStore) String() string {
	return fmt.Sprintf("%s (cached)", s.store)
}
