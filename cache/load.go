package cache

import (
	"context"
	"time"
)

// GetOrLoad returns the cached value under key, or calls load and writes the
// result through both tiers. Concurrent misses may both load; the last write
// wins. Load errors are returned and nothing is cached.
func GetOrLoad[T any](ctx context.Context, s Store, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if ok, err := s.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = s.Set(ctx, key, v, ttl)
	return v, nil
}
