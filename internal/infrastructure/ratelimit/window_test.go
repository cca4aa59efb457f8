package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changanet/internal/infrastructure/cache/adapter"
	"changanet/internal/infrastructure/cache/port"
)

func TestWindow_Allow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	w := NewWindow(adapter.NewMemoryCache().WithClock(clock), "ratelimit:send", 2, 10*time.Second)
	w.now = clock
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := w.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := w.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "third send in the window")

	ok, err = w.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	now = now.Add(10 * time.Second)
	ok, err = w.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok, "next window")
}

func TestWindow_Disabled(t *testing.T) {
	w := NewWindow(failingCache{}, "p", 0, time.Second)
	ok, err := w.Allow(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWindow_CacheError(t *testing.T) {
	w := NewWindow(failingCache{}, "p", 1, time.Second)
	_, err := w.Allow(context.Background(), "u1")
	assert.Error(t, err)
}

type failingCache struct{ port.Cache }

func (failingCache) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("down")
}
