package core

import (
	"context"
	"strings"

	"github.com/git-pkgs/pyintel/cache"
	"golang.org/x/sync/singleflight"
)

// PackageSource fetches package metadata. An empty version means the latest
// release.
type PackageSource interface {
	FetchPackageInfo(ctx context.Context, name, version string) (*PackageRecord, error)
}

// Store pairs the response cache with in-flight request deduplication.
// One Store is shared by every source of a client.
type Store struct {
	cache *cache.Cache
	group singleflight.Group
}

// NewStore wraps c. A nil cache gets a fresh default one.
func NewStore(c *cache.Cache) *Store {
	if c == nil {
		c = cache.New()
	}
	return &Store{cache: c}
}

// Cache returns the underlying response cache.
func (s *Store) Cache() *cache.Cache {
	return s.cache
}

// Cached returns the fresh cached value for key, or runs fetch and stores a
// successful result. Concurrent misses for the same key share one fetch.
// Errors are never cached.
func Cached[T any](ctx context.Context, s *Store, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := s.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		result, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, result)
		return result, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Key builds a cache key of the form endpoint:name[:extra...].
func Key(endpoint, name string, extra ...string) string {
	parts := append([]string{endpoint, NormalizeName(name)}, extra...)
	for len(parts) > 2 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ":")
}
