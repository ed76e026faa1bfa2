package sentiment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	"FinFusion/internal/domain/service"
	svccache "FinFusion/internal/service/cache"
	"FinFusion/pkg/logger"
)

// Engine aggregates the news, social and analyst sources into a SentimentSnapshot.
// Any source may be nil or fail; it then contributes zero weight.
type Engine struct {
	news    repository.NewsSource
	social  repository.SocialSource
	analyst repository.AnalystSource
	history repository.SentimentHistory
	memo    *svccache.Memo
	ttl     time.Duration
	metrics repository.Metrics
	log     *logger.Logger
	now     func() time.Time
}

var _ service.SentimentAnalyzer = (*Engine)(nil)

type Option func(*Engine)

func WithNews(s repository.NewsSource) Option       { return func(e *Engine) { e.news = s } }
func WithSocial(s repository.SocialSource) Option   { return func(e *Engine) { e.social = s } }
func WithAnalyst(s repository.AnalystSource) Option { return func(e *Engine) { e.analyst = s } }

func WithHistory(h repository.SentimentHistory) Option {
	return func(e *Engine) { e.history = h }
}

// WithMemo caches snapshots for ttl under sentiment_analysis:<symbol>.
func WithMemo(m *svccache.Memo, ttl time.Duration) Option {
	return func(e *Engine) {
		e.memo = m
		e.ttl = ttl
	}
}

func WithMetrics(m repository.Metrics) Option { return func(e *Engine) { e.metrics = m } }
func WithLogger(l *logger.Logger) Option      { return func(e *Engine) { e.log = l } }
func WithClock(now func() time.Time) Option   { return func(e *Engine) { e.now = now } }

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		ttl:     10 * time.Minute,
		metrics: repository.NopMetrics{},
		log:     logger.Nop(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Analyze returns the snapshot for symbol. Total source failure yields the
// empty snapshot, which is not cached.
func (e *Engine) Analyze(ctx context.Context, symbol string) models.SentimentSnapshot {
	if e.memo == nil {
		return e.analyze(ctx, symbol)
	}
	return svccache.Remember(ctx, e.memo, svccache.SentimentCache, svccache.SentimentKey(symbol), e.ttl,
		func(ctx context.Context) models.SentimentSnapshot { return e.analyze(ctx, symbol) },
		func(s models.SentimentSnapshot) bool { return s.Status != models.StatusUnavailable })
}

type fetched struct {
	articles []models.NewsArticle
	social   *models.SocialAggregate
	ratings  []models.AnalystRating
	errs     map[string]error
}

func (e *Engine) analyze(ctx context.Context, symbol string) (snap models.SentimentSnapshot) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("sentiment analysis panicked", logger.Symbol(symbol), logger.Error(fmt.Errorf("%v", r)))
			e.metrics.RecordError("sentiment_panic")
			snap = models.EmptySentimentSnapshot(symbol)
		}
		e.metrics.RecordLatency("sentiment", time.Since(start).Seconds())
	}()

	f := e.fetch(ctx, symbol)

	news, newsEvidence := AnalyzeNews(f.articles)
	social, socialEvidence := AnalyzeSocial(f.social)
	analyst := AnalyzeAnalysts(f.ratings)

	failed := 0
	for name, err := range f.errs {
		failed++
		e.log.Warn("sentiment source unavailable", logger.Symbol(symbol), logger.String("source", name), logger.Error(err))
		e.metrics.RecordSourceFailure(name)
		unavailable := models.SourceSentiment{Status: models.StatusUnavailable, Error: err.Error()}
		switch name {
		case "news":
			news, newsEvidence = unavailable, nil
		case "social":
			social, socialEvidence = unavailable, nil
		case "analyst":
			analyst = models.AnalystSentiment{SourceSentiment: unavailable}
		}
	}
	if failed == 3 {
		return models.EmptySentimentSnapshot(symbol)
	}

	score, confidence, weights := Combine(news, social, analyst)
	now := e.now()

	snap = models.SentimentSnapshot{
		Symbol:       symbol,
		OverallScore: score,
		Confidence:   confidence,
		News:         news,
		Social:       social,
		Analyst:      analyst,
		Weights:      weights,
		Evidence:     SelectEvidence(append(newsEvidence, socialEvidence...)),
		Trend:        models.SentimentTrend{Direction: models.SentimentStable},
		Sources: models.SourceCounts{
			News:    news.Count,
			Social:  social.Count,
			Analyst: analyst.Count,
		},
		Status:     models.StatusOK,
		AnalyzedAt: now,
	}
	if failed > 0 || confidence == 0 {
		snap.Status = models.StatusDegraded
	}

	e.applyTrend(ctx, &snap, now)
	return snap
}

// fetch runs the sources concurrently; each writes only its own slot.
func (e *Engine) fetch(ctx context.Context, symbol string) fetched {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		articles []models.NewsArticle
		social   *models.SocialAggregate
		ratings  []models.AnalystRating
		errs     = make(map[string]error)
	)

	run := func(name string, ok bool, fn func() error) {
		if !ok {
			mu.Lock()
			errs[name] = fmt.Errorf("%s source not configured", name)
			mu.Unlock()
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%s source panicked: %v", name, r)
					}
				}()
				return fn()
			}()
			if err != nil {
				mu.Lock()
				errs[name] = err
				mu.Unlock()
			}
		}()
	}

	run("news", e.news != nil, func() (err error) {
		articles, err = e.news.FetchNews(ctx, symbol)
		return err
	})
	run("social", e.social != nil, func() (err error) {
		social, err = e.social.FetchSocial(ctx, symbol)
		return err
	})
	run("analyst", e.analyst != nil, func() (err error) {
		ratings, err = e.analyst.FetchAnalystRatings(ctx, symbol)
		return err
	})
	wg.Wait()

	return fetched{articles: articles, social: social, ratings: ratings, errs: errs}
}

func (e *Engine) applyTrend(ctx context.Context, snap *models.SentimentSnapshot, now time.Time) {
	if e.history == nil {
		return
	}
	points, err := e.history.Load(ctx, snap.Symbol)
	if err != nil {
		e.log.Warn("sentiment history unavailable", logger.Symbol(snap.Symbol), logger.Error(err))
	}
	snap.Trend = ComputeTrend(snap.OverallScore, points, now)

	if err := e.history.Append(ctx, snap.Symbol, models.SentimentPoint{
		Score:      snap.OverallScore,
		Confidence: snap.Confidence,
		At:         now,
	}); err != nil {
		e.log.Warn("sentiment history append failed", logger.Symbol(snap.Symbol), logger.Error(err))
	}
}
