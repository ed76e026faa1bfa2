package fusion

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	svccache "FinFusion/internal/service/cache"
	svcmetrics "FinFusion/internal/service/metrics"
	pkgcache "FinFusion/pkg/cache"
)

var fixedNow = time.Date(2025, 1, 2, 21, 0, 0, 0, time.UTC)

func quantSet(score, conf float64, vol models.VolatilityRegime) models.IndicatorSet {
	set := models.EmptyIndicatorSet("AAPL", 250, 250)
	set.Status = models.StatusOK
	set.CurrentPrice = 150
	set.Composite.Score = score
	set.Composite.Confidence = conf
	set.Volatility.Regime = vol
	set.Trend.Score = score
	set.Momentum.Score = score
	set.Trend.ADX = 30
	set.Momentum.RSI = 55
	set.ComputedAt = fixedNow
	return set
}

func sentSnap(score, conf float64) models.SentimentSnapshot {
	s := models.EmptySentimentSnapshot("AAPL")
	s.Status = models.StatusOK
	s.OverallScore = score
	s.Confidence = conf
	s.News = models.SourceSentiment{Score: score, Confidence: conf, Count: 10, Status: models.StatusOK}
	s.Social = models.SourceSentiment{Score: score, Confidence: conf, Count: 300, Status: models.StatusOK}
	s.Weights = models.SourceWeights{News: 0.5, Social: 0.5}
	s.Sources = models.SourceCounts{News: 10, Social: 300}
	s.AnalyzedAt = fixedNow
	return s
}

type stubQuant struct {
	calls     int32
	panicOnce int32
	set       models.IndicatorSet
}

func (s *stubQuant) Analyze(_ context.Context, _ string, _ int, _ repository.Timeframe) models.IndicatorSet {
	atomic.AddInt32(&s.calls, 1)
	if atomic.CompareAndSwapInt32(&s.panicOnce, 1, 0) {
		panic("quant exploded")
	}
	return s.set
}

type stubSentiment struct {
	calls int32
	snap  models.SentimentSnapshot
}

func (s *stubSentiment) Analyze(context.Context, string) models.SentimentSnapshot {
	atomic.AddInt32(&s.calls, 1)
	return s.snap
}

func TestAlpha_DecreasesWithVolatility(t *testing.T) {
	low, med, high := Alpha(models.VolatilityLow), Alpha(models.VolatilityMedium), Alpha(models.VolatilityHigh)
	assert.Equal(t, 0.8, low)
	assert.Equal(t, 0.6, med)
	assert.Equal(t, 0.4, high)
	assert.Greater(t, low, med)
	assert.Greater(t, med, high)
}

func TestScore(t *testing.T) {
	// (0.8*0.8*0.9 + 0.2*0.7*0.8) / (0.8*0.9 + 0.2*0.8)
	assert.InDelta(t, 0.688/0.88, Score(0.8, 0.8, 0.9, 0.7, 0.8), 1e-12)
	assert.Equal(t, 0.0, Score(0.6, 1, 0, -1, 0), "no confidence on either side")
	assert.Equal(t, 1.0, Score(0.6, 5, 1, 5, 1), "clamped")
}

func TestThresholdsFor(t *testing.T) {
	full := ThresholdsFor(models.VolatilityMedium, 1)
	assert.InDelta(t, 0.2, full.Buy, 1e-12)
	assert.InDelta(t, -0.6, full.StrongSell, 1e-12)

	// lower confidence widens the ladder, volatility scales it
	none := ThresholdsFor(models.VolatilityMedium, 0)
	assert.InDelta(t, 0.4, none.Buy, 1e-12)
	assert.InDelta(t, 0.24, ThresholdsFor(models.VolatilityHigh, 1).Buy, 1e-12)
	assert.InDelta(t, 0.16, ThresholdsFor(models.VolatilityLow, 1).Buy, 1e-12)
}

func TestClassify(t *testing.T) {
	th := ThresholdsFor(models.VolatilityMedium, 1)
	assert.Equal(t, models.ActionStrongBuy, Classify(0.6, th))
	assert.Equal(t, models.ActionBuy, Classify(0.25, th))
	assert.Equal(t, models.ActionHold, Classify(0.0, th))
	assert.Equal(t, models.ActionSell, Classify(-0.25, th))
	assert.Equal(t, models.ActionStrongSell, Classify(-0.7, th))
}

func TestFuse_ScenarioBullishLowVolatility(t *testing.T) {
	res := Fuse("AAPL", quantSet(0.8, 0.9, models.VolatilityLow), sentSnap(0.7, 0.8), fixedNow)

	assert.Equal(t, 0.8, res.Alpha)
	assert.Greater(t, res.FusionScore, 0.5)
	assert.Contains(t, []models.Action{models.ActionStrongBuy, models.ActionBuy}, res.Recommendation.Action)
	assert.Equal(t, models.StatusOK, res.Status)
	assert.Len(t, res.TopDrivers, 5)
	assert.Equal(t, 150.0, res.CurrentPrice)
}

func TestFuse_ScenarioBearishLowVolatility(t *testing.T) {
	res := Fuse("AAPL", quantSet(-0.8, 0.9, models.VolatilityLow), sentSnap(-0.7, 0.8), fixedNow)

	assert.Less(t, res.FusionScore, -0.5)
	assert.Contains(t, []models.Action{models.ActionStrongSell, models.ActionSell}, res.Recommendation.Action)
}

func TestFuse_BothUnavailableIsEmpty(t *testing.T) {
	res := Fuse("AAPL", models.EmptyIndicatorSet("AAPL", 250, 0), models.EmptySentimentSnapshot("AAPL"), fixedNow)

	assert.Equal(t, 0.0, res.FusionScore)
	assert.Equal(t, models.ActionHold, res.Recommendation.Action)
	assert.Equal(t, models.StatusUnavailable, res.Status)
}

func TestFuse_OneSideUnavailableIsDegraded(t *testing.T) {
	res := Fuse("AAPL", quantSet(0.5, 0.8, models.VolatilityMedium), models.EmptySentimentSnapshot("AAPL"), fixedNow)

	assert.Equal(t, models.StatusDegraded, res.Status)
	// sentiment carries no confidence, so the score is the quant score
	assert.InDelta(t, 0.5, res.FusionScore, 1e-12)
}

func TestFuse_Bounded(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	regimes := []models.VolatilityRegime{models.VolatilityLow, models.VolatilityMedium, models.VolatilityHigh}
	for i := 0; i < 500; i++ {
		ind := quantSet(rng.Float64()*10-5, rng.Float64()*3-1, regimes[rng.Intn(3)])
		ind.Trend.ADX = rng.Float64() * 120
		ind.Volume.Ratio = rng.Float64() * 10
		sent := sentSnap(rng.Float64()*4-2, rng.Float64()*3-1)

		res := Fuse("X", ind, sent, fixedNow)
		require.GreaterOrEqual(t, res.FusionScore, -1.0)
		require.LessOrEqual(t, res.FusionScore, 1.0)
		require.GreaterOrEqual(t, res.Confidence, 0.0)
		require.LessOrEqual(t, res.Confidence, 1.0)
		require.GreaterOrEqual(t, res.PositionSizing.RecommendedSizePercent, 2.0)
		require.LessOrEqual(t, res.PositionSizing.RecommendedSizePercent, 25.0)
		require.GreaterOrEqual(t, res.RiskAssessment.Score, 0.0)
		require.LessOrEqual(t, res.RiskAssessment.Score, 1.0)
	}
}

func TestTopDrivers_SortedByImpact(t *testing.T) {
	ind := quantSet(0.1, 0.9, models.VolatilityMedium)
	ind.Composite.Weights = models.FamilyWeights{Trend: 0.3, Momentum: 0.3, Volatility: 0.2, Volume: 0.2}
	ind.Trend.Score = 0.9
	ind.Momentum.Score = -0.5
	sent := sentSnap(0.2, 0.5)
	sent.Analyst.Score = -1

	drivers := TopDrivers(ind, sent, 0.6)
	require.Len(t, drivers, 5)
	assert.Equal(t, "trend", drivers[0].Name)
	assert.InDelta(t, 0.6*0.3*0.9, drivers[0].Impact, 1e-12)
	for i := 1; i < len(drivers); i++ {
		assert.GreaterOrEqual(t, abs(drivers[i-1].Impact), abs(drivers[i].Impact))
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestAssessRisk(t *testing.T) {
	ind := quantSet(0.8, 0.9, models.VolatilityHigh)
	ind.Trend.ADX = 5
	ind.Volume.Ratio = 4
	sent := sentSnap(-0.8, 0.9)

	r := AssessRisk(ind, sent, 0.1)
	assert.Equal(t, models.RiskHigh, r.Level)
	assert.InDelta(t, 0.9, r.Factors.Volatility, 1e-12)
	assert.InDelta(t, 0.9, r.Factors.TrendWeakness, 1e-12)
	assert.InDelta(t, 0.8, r.Factors.SentimentDivergence, 1e-12)
	assert.Len(t, r.Mitigations, 5)

	calm := quantSet(0.5, 0.9, models.VolatilityLow)
	calm.Trend.ADX = 45
	calm.Volume.Ratio = 1
	r = AssessRisk(calm, sentSnap(0.5, 0.9), 0.9)
	assert.Equal(t, models.RiskLow, r.Level)
	assert.Empty(t, r.Mitigations)
}

func TestSizePosition(t *testing.T) {
	p := SizePosition(0.7, models.RiskLow, 1)
	// 10 * 1.5 * 1.2 * 1.0
	assert.InDelta(t, 18, p.RecommendedSizePercent, 1e-9)

	p = SizePosition(0.05, models.RiskHigh, 0)
	// 10 * 0.5 * 0.6 * 0.5 = 1.5, clamped
	assert.Equal(t, 2.0, p.RecommendedSizePercent)
}

func TestChooseHorizon(t *testing.T) {
	ind := quantSet(0.5, 0.9, models.VolatilityLow)
	ind.Trend.ADX = 35
	assert.Equal(t, models.HorizonLong, ChooseHorizon(ind, sentSnap(0.5, 0.8)).Horizon)

	ind.Volatility.Regime = models.VolatilityHigh
	assert.Equal(t, models.HorizonShort, ChooseHorizon(ind, sentSnap(0.5, 0.8)).Horizon)

	ind.Volatility.Regime = models.VolatilityMedium
	ind.Trend.ADX = 22
	assert.Equal(t, models.HorizonMedium, ChooseHorizon(ind, sentSnap(0.5, 0.8)).Horizon)
}

func TestCatalysts(t *testing.T) {
	ind := quantSet(0.5, 0.9, models.VolatilityLow)
	ind.Momentum.RSI = 75
	sent := sentSnap(0.5, 0.8)
	sent.Analyst.AveragePriceTarget = 180
	sent.Evidence = []models.Evidence{{Source: "news", Text: "beats estimates", Score: 0.8}}

	cs := Catalysts(ind, sent)
	require.Len(t, cs, 3)
	assert.Equal(t, "news", cs[0].Kind)
	assert.Equal(t, "analyst_target", cs[1].Kind)
	assert.InDelta(t, 0.2, cs[1].Impact, 1e-9)
	assert.Equal(t, "technical", cs[2].Kind)
}

func TestEngine_EmptyWhenBothStagesFail(t *testing.T) {
	q := &stubQuant{set: models.EmptyIndicatorSet("AAPL", 250, 0)}
	s := &stubSentiment{snap: models.EmptySentimentSnapshot("AAPL")}
	store := pkgcache.NewMemoryCache()
	defer store.Close()

	e := NewEngine(q, s, WithMemo(svccache.NewMemo(store, nil, nil), time.Minute), WithClock(func() time.Time { return fixedNow }))
	res := e.Generate(context.Background(), "AAPL", 250, repository.TF1d)
	assert.Equal(t, models.ActionHold, res.Recommendation.Action)
	assert.Equal(t, 0.0, res.FusionScore)

	e.Generate(context.Background(), "AAPL", 250, repository.TF1d)
	assert.Equal(t, int32(2), atomic.LoadInt32(&q.calls), "unavailable results are not cached")
}

func TestEngine_CachedResultsAreByteIdentical(t *testing.T) {
	q := &stubQuant{set: quantSet(0.4, 0.8, models.VolatilityMedium)}
	s := &stubSentiment{snap: sentSnap(0.3, 0.6)}
	store := pkgcache.NewMemoryCache()
	defer store.Close()
	col := svcmetrics.NewCollector()

	e := NewEngine(q, s, WithMemo(svccache.NewMemo(store, col, nil), time.Minute), WithMetrics(col))
	ctx := context.Background()

	first := e.Generate(ctx, "AAPL", 250, repository.TF1d)
	second := e.Generate(ctx, "AAPL", 250, repository.TF1d)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, int32(1), atomic.LoadInt32(&q.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&s.calls))

	exists, err := store.Exists(ctx, svccache.FusionKey("AAPL", 250, repository.TF1d))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEngine_SequentialMatchesParallel(t *testing.T) {
	clock := WithClock(func() time.Time { return fixedNow })
	q := &stubQuant{set: quantSet(0.4, 0.8, models.VolatilityHigh)}
	s := &stubSentiment{snap: sentSnap(-0.2, 0.7)}

	par := NewEngine(q, s, clock, WithParallelFetch(true)).Generate(context.Background(), "AAPL", 250, repository.TF1d)
	seq := NewEngine(q, s, clock, WithParallelFetch(false)).Generate(context.Background(), "AAPL", 250, repository.TF1d)
	assert.Equal(t, par, seq)
}

func TestEngine_PanickingBranchFallsBackToSequential(t *testing.T) {
	q := &stubQuant{set: quantSet(0.4, 0.8, models.VolatilityMedium), panicOnce: 1}
	s := &stubSentiment{snap: sentSnap(0.3, 0.6)}
	col := svcmetrics.NewCollector()

	res := NewEngine(q, s, WithMetrics(col)).Generate(context.Background(), "AAPL", 250, repository.TF1d)
	assert.Equal(t, models.StatusOK, res.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&q.calls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&s.calls))
	assert.Equal(t, 1, col.Snapshot().Errors["parallel_fetch"])
}
