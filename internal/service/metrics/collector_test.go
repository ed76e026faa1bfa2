package metrics

import (
    "sync"
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestCollector_ConcurrentCounts(t *testing.T) {
    c := NewCollector()

    var wg sync.WaitGroup
    for i := 0; i < 50; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            c.RecordCacheHit("quant_indicators")
            c.RecordLatency("fusion", 0.01)
        }()
    }
    wg.Wait()

    snap := c.Snapshot()
    assert.Equal(t, 50, snap.CacheHits["quant_indicators"])
    assert.InDelta(t, 0.01, snap.LatencyP50["fusion"], 1e-9)
}

func TestCollector_SnapshotIsACopy(t *testing.T) {
    c := NewCollector()
    c.RecordFallback("AAPL")

    snap := c.Snapshot()
    snap.Fallbacks["AAPL"] = 99

    assert.Equal(t, 1, c.Snapshot().Fallbacks["AAPL"])
}

func TestTee_FansOut(t *testing.T) {
    a, b := NewCollector(), NewCollector()
    tee := Tee{a, b}

    tee.RecordReasonerAttempt("accepted")
    tee.RecordError("persist")

    assert.Equal(t, 1, a.Snapshot().ReasonerAttempts["accepted"])
    assert.Equal(t, 1, b.Snapshot().Errors["persist"])
}
