package sentiment

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/models"
	svccache "FinFusion/internal/service/cache"
	svcmetrics "FinFusion/internal/service/metrics"
	"FinFusion/internal/service/sources"
	pkgcache "FinFusion/pkg/cache"
)

type stubNews struct {
	articles []models.NewsArticle
	err      error
	calls    int
}

func (s *stubNews) FetchNews(context.Context, string) ([]models.NewsArticle, error) {
	s.calls++
	return s.articles, s.err
}

type stubSocial struct {
	agg *models.SocialAggregate
	err error
}

func (s *stubSocial) FetchSocial(context.Context, string) (*models.SocialAggregate, error) {
	return s.agg, s.err
}

type stubAnalyst struct {
	ratings []models.AnalystRating
	err     error
}

func (s *stubAnalyst) FetchAnalystRatings(context.Context, string) ([]models.AnalystRating, error) {
	return s.ratings, s.err
}

type panicSocial struct{}

func (panicSocial) FetchSocial(context.Context, string) (*models.SocialAggregate, error) {
	panic("boom")
}

func articles(titles ...string) []models.NewsArticle {
	out := make([]models.NewsArticle, len(titles))
	for i, t := range titles {
		out[i] = models.NewsArticle{Title: t, Source: "test"}
	}
	return out
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestScoreText(t *testing.T) {
	s, n := ScoreText("Apple beats estimates, shares surge to record")
	assert.Equal(t, 1.0, s)
	assert.Equal(t, 3, n)

	s, n = ScoreText("profit warning: shares plunge")
	assert.InDelta(t, (1.0-2.0)/math.Sqrt(3), s, 1e-12)
	assert.Equal(t, 3, n)

	s, _ = ScoreText("results were not strong")
	assert.Equal(t, -1.0, s)

	s, n = ScoreText("company holds meeting")
	assert.Equal(t, 0.0, s)
	assert.Equal(t, 0, n)
}

func TestAnalyzeNews(t *testing.T) {
	res, ev := AnalyzeNews(nil)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Empty(t, ev)

	agree, _ := AnalyzeNews(articles("strong gains", "record profit", "shares surge", "upgrade on growth", "rally continues"))
	mixed, ev := AnalyzeNews(articles("strong gains", "shares plunge", "record profit", "lawsuit filed", "rally", "weak sales"))

	assert.Equal(t, 1.0, agree.Score)
	assert.InDelta(t, 1.0, agree.Confidence, 1e-9)
	assert.Less(t, mixed.Confidence, agree.Confidence)
	assert.Len(t, ev, 6)
}

func TestAnalyzeSocial(t *testing.T) {
	res, _ := AnalyzeSocial(&models.SocialAggregate{MentionCount: 250, PositiveCount: 150, NegativeCount: 50, NeutralCount: 50})
	assert.InDelta(t, 0.4, res.Score, 1e-12)
	assert.InDelta(t, 0.5, res.Confidence, 1e-12)

	res, _ = AnalyzeSocial(&models.SocialAggregate{MentionCount: 5000, SentimentScore: -0.3})
	assert.Equal(t, -0.3, res.Score)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestAnalyzeAnalysts(t *testing.T) {
	res := AnalyzeAnalysts([]models.AnalystRating{
		{Rating: "BUY", Confidence: 0.9, PriceTarget: 120},
		{Rating: "Strong Buy", Confidence: 0.6, PriceTarget: 130},
		{Rating: "SELL", Confidence: 0.3},
		{Rating: "HOLD"},
	})
	assert.InDelta(t, (0.9+0.6-0.3)/(0.9+0.6+0.3+0.5), res.Score, 1e-12)
	assert.InDelta(t, (0.9+0.6+0.3+0.5)/4, res.Confidence, 1e-12)
	assert.Equal(t, 125.0, res.AveragePriceTarget)
	assert.Equal(t, 2, res.Buy)
	assert.Equal(t, 1, res.Sell)
	assert.Equal(t, 1, res.Hold)
}

func TestCombine_ConfidenceWeighted(t *testing.T) {
	news := models.SourceSentiment{Score: 0.8, Confidence: 0.6}
	social := models.SourceSentiment{Score: -0.4, Confidence: 0}
	analyst := models.AnalystSentiment{SourceSentiment: models.SourceSentiment{Score: 0.2, Confidence: 0.2}}

	score, conf, w := Combine(news, social, analyst)
	assert.InDelta(t, 0.75, w.News, 1e-12)
	assert.Equal(t, 0.0, w.Social)
	assert.InDelta(t, 0.25, w.Analyst, 1e-12)
	assert.InDelta(t, 0.75*0.8+0.25*0.2, score, 1e-12)
	assert.InDelta(t, 0.75*0.6+0.25*0.2, conf, 1e-12)

	score, conf, _ = Combine(models.SourceSentiment{}, models.SourceSentiment{}, models.AnalystSentiment{})
	assert.Zero(t, score)
	assert.Zero(t, conf)
}

func TestSelectEvidence(t *testing.T) {
	items := []models.Evidence{
		{Text: "a", Score: 0.1}, {Text: "b", Score: -0.9}, {Text: "c", Score: 0.5},
		{Text: "d", Score: 0.3}, {Text: "e", Score: -0.4}, {Text: "f", Score: 0.7}, {Text: "g", Score: 0.21},
	}
	got := SelectEvidence(items)
	require.Len(t, got, 5)
	assert.Equal(t, "b", got[0].Text)
	assert.Equal(t, "f", got[1].Text)
	for _, e := range got {
		assert.Greater(t, math.Abs(e.Score), EvidenceThreshold)
	}
}

func TestComputeTrend(t *testing.T) {
	history := []models.SentimentPoint{
		{Score: 0.0, At: fixedNow.Add(-6 * 24 * time.Hour)},
		{Score: 0.1, At: fixedNow.Add(-30 * time.Hour)},
		{Score: 0.2, At: fixedNow.Add(-2 * time.Hour)},
		{Score: 0.9, At: fixedNow.Add(-10 * 24 * time.Hour)},
	}

	tr := ComputeTrend(0.5, history, fixedNow)
	assert.Equal(t, models.SentimentImproving, tr.Direction)
	assert.InDelta(t, 0.4, tr.Change24h, 1e-12)
	assert.InDelta(t, 0.5, tr.Change7d, 1e-12)

	tr = ComputeTrend(0.05, history, fixedNow)
	assert.Equal(t, models.SentimentStable, tr.Direction)

	tr = ComputeTrend(-0.3, history, fixedNow)
	assert.Equal(t, models.SentimentDeclining, tr.Direction)

	assert.Equal(t, models.SentimentStable, ComputeTrend(0.9, nil, fixedNow).Direction)
}

func TestEngine_AllSourcesFailIsEmptySnapshot(t *testing.T) {
	col := svcmetrics.NewCollector()
	e := NewEngine(
		WithNews(&stubNews{err: errors.New("timeout")}),
		WithSocial(&stubSocial{err: errors.New("503")}),
		WithAnalyst(&stubAnalyst{err: errors.New("403")}),
		WithMetrics(col),
	)

	snap := e.Analyze(context.Background(), "AAPL")
	assert.Equal(t, models.StatusUnavailable, snap.Status)
	assert.Zero(t, snap.OverallScore)
	assert.Zero(t, snap.Confidence)
	assert.Empty(t, snap.Evidence)
	assert.Equal(t, 1, col.Snapshot().SourceFailures["news"])
}

func TestEngine_PartialFailureDegrades(t *testing.T) {
	e := NewEngine(
		WithNews(&stubNews{articles: articles("strong gains", "record profit", "shares surge", "rally", "beats")}),
		WithSocial(panicSocial{}),
		WithAnalyst(&stubAnalyst{err: errors.New("rate limited")}),
		WithClock(func() time.Time { return fixedNow }),
	)

	snap := e.Analyze(context.Background(), "AAPL")
	assert.Equal(t, models.StatusDegraded, snap.Status)
	assert.Equal(t, models.StatusUnavailable, snap.Social.Status)
	assert.Equal(t, models.StatusUnavailable, snap.Analyst.Status)
	assert.Equal(t, 1.0, snap.Weights.News)
	assert.Greater(t, snap.OverallScore, 0.5)
	assert.LessOrEqual(t, len(snap.Evidence), 5)
}

func TestEngine_MemoizedAndHistoryTracked(t *testing.T) {
	store := pkgcache.NewMemoryCache()
	defer store.Close()
	news := &stubNews{articles: articles("strong gains", "shares plunge", "record profit")}
	hist := NewCacheHistory(store, 0)
	hist.now = func() time.Time { return fixedNow }

	e := NewEngine(
		WithNews(news),
		WithSocial(&stubSocial{agg: &models.SocialAggregate{MentionCount: 100, SentimentScore: 0.2}}),
		WithAnalyst(&stubAnalyst{ratings: []models.AnalystRating{{Rating: "BUY", Confidence: 0.8}}}),
		WithHistory(hist),
		WithMemo(svccache.NewMemo(store, nil, nil), time.Minute),
		WithClock(func() time.Time { return fixedNow }),
	)

	first := e.Analyze(context.Background(), "AAPL")
	second := e.Analyze(context.Background(), "AAPL")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, news.calls)
	assert.Equal(t, models.StatusOK, first.Status)

	raw, err := store.GetBytes(context.Background(), svccache.SentimentKey("AAPL"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"symbol":"AAPL"`)

	points, err := hist.Load(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, first.OverallScore, points[0].Score)
}

func TestEngine_SeededMocksAreReproducible(t *testing.T) {
	build := func() *Engine {
		m := sources.NewMockSources(rand.New(rand.NewSource(42)))
		return NewEngine(WithNews(m), WithSocial(m), WithAnalyst(m), WithClock(func() time.Time { return fixedNow }))
	}
	a := build().Analyze(context.Background(), "AAPL")
	b := build().Analyze(context.Background(), "AAPL")

	assert.Equal(t, a.News, b.News)
	assert.Equal(t, a.Analyst, b.Analyst)
	assert.GreaterOrEqual(t, a.OverallScore, -1.0)
	assert.LessOrEqual(t, a.OverallScore, 1.0)
	assert.GreaterOrEqual(t, a.Confidence, 0.0)
	assert.LessOrEqual(t, a.Confidence, 1.0)
}
