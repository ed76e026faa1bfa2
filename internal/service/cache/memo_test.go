package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/repository"
	svcmetrics "FinFusion/internal/service/metrics"
	pkgcache "FinFusion/pkg/cache"
)

type result struct {
	Score  float64   `json:"score"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

func newMemo(t *testing.T) (*Memo, *svcmetrics.Collector) {
	t.Helper()
	store := pkgcache.NewMemoryCache()
	t.Cleanup(func() { _ = store.Close() })
	col := svcmetrics.NewCollector()
	return NewMemo(store, col, nil), col
}

func TestRemember_HitReturnsIdenticalValue(t *testing.T) {
	m, col := newMemo(t)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) result {
		calls++
		return result{Score: 0.123456789, Status: "ok", At: time.Now()}
	}

	first := Remember(ctx, m, FusionCache, "fusion_analysis:AAPL", time.Minute, compute, nil)
	second := Remember(ctx, m, FusionCache, "fusion_analysis:AAPL", time.Minute, compute, nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	snap := col.Snapshot()
	assert.Equal(t, 1, snap.CacheHits[FusionCache])
	assert.Equal(t, 1, snap.CacheMisses[FusionCache])
}

func TestRemember_RejectedValuesAreNotCached(t *testing.T) {
	m, _ := newMemo(t)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) result {
		calls++
		return result{Status: "unavailable"}
	}
	keep := func(r result) bool { return r.Status != "unavailable" }

	Remember(ctx, m, SentimentCache, "sentiment_analysis:X", time.Minute, compute, keep)
	Remember(ctx, m, SentimentCache, "sentiment_analysis:X", time.Minute, compute, keep)

	assert.Equal(t, 2, calls)
}

func TestRemember_ConcurrentCallersShareComputation(t *testing.T) {
	m, _ := newMemo(t)
	ctx := context.Background()
	var calls int32
	release := make(chan struct{})
	compute := func(context.Context) result {
		atomic.AddInt32(&calls, 1)
		<-release
		return result{Score: 1}
	}

	var wg sync.WaitGroup
	results := make([]result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Remember(ctx, m, QuantCache, "quant_indicators:AAPL:250", time.Minute, compute, nil)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	for _, r := range results {
		assert.Equal(t, 1.0, r.Score)
	}
}

func TestInvalidate_DropsDerivedEntriesOnly(t *testing.T) {
	m, _ := newMemo(t)
	ctx := context.Background()
	store := m.Store()

	for _, k := range []string{
		QuantKey("AAPL", 250, repository.TF1d),
		SentimentKey("AAPL"),
		FusionKey("AAPL", 250, repository.TF1d),
		FusionKey("AAPL", 100, repository.TF1h),
		SentimentHistoryKey("AAPL"),
		FusionKey("MSFT", 250, repository.TF1d),
	} {
		require.NoError(t, store.Set(ctx, k, 1, time.Minute))
	}

	require.NoError(t, m.Invalidate(ctx, "aapl"))

	ok, _ := store.Exists(ctx, QuantKey("AAPL", 250, repository.TF1d))
	assert.False(t, ok)
	ok, _ = store.Exists(ctx, FusionKey("AAPL", 100, repository.TF1h))
	assert.False(t, ok)
	ok, _ = store.Exists(ctx, SentimentHistoryKey("AAPL"))
	assert.True(t, ok)
	ok, _ = store.Exists(ctx, FusionKey("MSFT", 250, repository.TF1d))
	assert.True(t, ok)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "quant_indicators:AAPL:250", QuantKey("AAPL", 250, repository.TF1d))
	assert.Equal(t, "quant_indicators:AAPL:100:1h", QuantKey("AAPL", 100, repository.TF1h))
	assert.Equal(t, "sentiment_analysis:AAPL", SentimentKey("AAPL"))
	assert.Equal(t, "fusion_analysis:AAPL", FusionKey("AAPL", 250, repository.TF1d))
	assert.Equal(t, "sentiment_history:AAPL", SentimentHistoryKey("AAPL"))
}
