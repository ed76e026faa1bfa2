package ratelimit

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
    l := New(0.001, 2)

    assert.True(t, l.Allow("finnhub"))
    assert.True(t, l.Allow("finnhub"))
    assert.False(t, l.Allow("finnhub"))
    assert.True(t, l.Allow("rss"), "keys have independent buckets")
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
    l := New(0.001, 1)
    assert.True(t, l.Allow("k"))

    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
    defer cancel()
    assert.Error(t, l.Wait(ctx, "k"))
}
