package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestMemoryCache_TypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", sample{Name: "AAPL", Score: 0.25}, time.Minute))

	var got sample
	require.NoError(t, mc.Get(ctx, "a", &got))
	assert.Equal(t, sample{Name: "AAPL", Score: 0.25}, got)

	typed, err := GetTyped[sample](ctx, mc, "a")
	require.NoError(t, err)
	assert.Equal(t, got, typed)
}

func TestMemoryCache_MissAndExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "missing", &s), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "short", &s), ErrCacheMiss)
}

func TestMemoryCache_DeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "quant_indicators:AAPL:250", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "quant_indicators:MSFT:250", 2, time.Minute))
	require.NoError(t, mc.Set(ctx, "fusion_analysis:AAPL", 3, time.Minute))

	require.NoError(t, mc.DeleteByPattern(ctx, "quant_indicators:AAPL*"))

	ok, err := mc.Exists(ctx, "quant_indicators:AAPL:250")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = mc.Exists(ctx, "quant_indicators:MSFT:250", "fusion_analysis:AAPL")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "first", 1, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "second", 2, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "third", 3, time.Minute))

	ok, _ := mc.Exists(ctx, "first")
	assert.False(t, ok)
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCache_TryLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "lock:AAPL", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "lock:AAPL", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock:AAPL"))
	ok, _ = mc.TryLock(ctx, "lock:AAPL", time.Minute)
	assert.True(t, ok)
}

func TestLayeredCache_ReadsThroughToRemote(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryCache()
	defer remote.Close()
	lc := NewLayeredCache(remote, WithLayeredMemorySize(10))
	defer lc.Close()

	require.NoError(t, remote.Set(ctx, "k", sample{Name: "x"}, time.Minute))

	got, err := GetTyped[sample](ctx, lc, "k")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Name)

	require.NoError(t, lc.Delete(ctx, "k"))
	_, err = GetTyped[sample](ctx, lc, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
