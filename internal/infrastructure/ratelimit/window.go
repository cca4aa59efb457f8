// Package ratelimit implements fixed-window counters on top of the cache port.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"changanet/internal/infrastructure/cache/port"
)

// Window allows at most Limit events per key within each Window.
// Counters live in the cache, so every API node shares them when the cache is Redis.
type Window struct {
	cache  port.Cache
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewWindow(cache port.Cache, prefix string, limit int, window time.Duration) *Window {
	return &Window{
		cache:  cache,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow counts one event for key and reports whether it fits in the current window.
// A non-positive limit disables limiting.
func (w *Window) Allow(ctx context.Context, key string) (bool, error) {
	if w.limit <= 0 || w.window <= 0 {
		return true, nil
	}
	bucket := w.now().UnixNano() / int64(w.window)
	n, err := w.cache.Incr(ctx, fmt.Sprintf("%s:%s:%d", w.prefix, key, bucket), w.window)
	if err != nil {
		return false, fmt.Errorf("ratelimit: %w", err)
	}
	return n <= w.limit, nil
}
