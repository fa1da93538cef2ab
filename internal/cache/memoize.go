// Package cache populates Permanent Stores from expensive sources.
//
// Every loader follows the same protocol: look the content key up, use the
// cached value when present, otherwise compute it (usually a network fetch),
// write it back, and return it. A failed write-back is logged and ignored;
// the caller still gets the freshly computed value.
package cache

import (
	"context"
	"log/slog"
)

// Cache is the mapping a loader needs from a store.
// *store.Store[V] satisfies it.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V) error
}

// Memoize returns the value cached under key, computing and caching it on a
// miss. compute errors are returned unchanged and nothing is cached.
func Memoize[V any](ctx context.Context, c Cache[V], key string, compute func(context.Context) (V, error), logger *slog.Logger) (V, error) {
	logger = loggerOrDefault(logger)
	if v, ok := c.Get(ctx, key); ok {
		logger.Debug("cache hit", "key", key)
		return v, nil
	}

	logger.Debug("cache miss", "key", key)
	v, err := compute(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	if err := c.Set(ctx, key, v); err != nil {
		logger.Warn("cache write-back failed, continuing uncached", "key", key, "error", err)
	}
	return v, nil
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
