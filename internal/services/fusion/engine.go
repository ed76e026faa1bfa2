package fusion

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

// Engine runs the quant and sentiment stages, fuses them and memoizes the
// result per symbol.
type Engine struct {
	quant     service.QuantAnalyzer
	sentiment service.SentimentAnalyzer
	memo      *svccache.Memo
	ttl       time.Duration
	parallel  bool
	metrics   repository.Metrics
	log       *logger.Logger
	now       func() time.Time
}

var _ service.FusionAnalyzer = (*Engine)(nil)

type Option func(*Engine)

// WithMemo caches results for ttl under fusion_analysis:<symbol>.
func WithMemo(m *svccache.Memo, ttl time.Duration) Option {
	return func(e *Engine) {
		e.memo = m
		e.ttl = ttl
	}
}

// WithParallelFetch toggles running both stages concurrently. Sequential
// execution produces the same result.
func WithParallelFetch(on bool) Option { return func(e *Engine) { e.parallel = on } }

func WithMetrics(m repository.Metrics) Option { return func(e *Engine) { e.metrics = m } }
func WithLogger(l *logger.Logger) Option      { return func(e *Engine) { e.log = l } }
func WithClock(now func() time.Time) Option   { return func(e *Engine) { e.now = now } }

func NewEngine(quant service.QuantAnalyzer, sentiment service.SentimentAnalyzer, opts ...Option) *Engine {
	e := &Engine{
		quant:     quant,
		sentiment: sentiment,
		ttl:       5 * time.Minute,
		parallel:  true,
		metrics:   repository.NopMetrics{},
		log:       logger.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Generate never fails. Unavailable results are returned but not cached.
func (e *Engine) Generate(ctx context.Context, symbol string, period int, tf repository.Timeframe) models.FusionResult {
	compute := func(ctx context.Context) models.FusionResult {
		return e.generate(ctx, symbol, period, tf)
	}
	if e.memo == nil {
		return compute(ctx)
	}
	return svccache.Remember(ctx, e.memo, svccache.FusionCache, svccache.FusionKey(symbol, period, tf), e.ttl, compute,
		func(r models.FusionResult) bool { return r.Status != models.StatusUnavailable })
}

func (e *Engine) generate(ctx context.Context, symbol string, period int, tf repository.Timeframe) (res models.FusionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("fusion pipeline panicked", logger.Symbol(symbol), logger.Error(fmt.Errorf("%v", r)))
			e.metrics.RecordError("fusion_panic")
			res = models.EmptyFusionResult(symbol)
		}
		e.metrics.RecordLatency("fusion", time.Since(start).Seconds())
	}()

	ind, sent := e.fetch(ctx, symbol, period, tf)
	res = Fuse(symbol, ind, sent, e.now())

	e.log.Info("fusion generated",
		logger.Symbol(symbol),
		logger.String("action", string(res.Recommendation.Action)),
		logger.Float64("score", res.FusionScore),
		logger.Float64("confidence", res.Confidence),
		logger.Float64("alpha", res.Alpha),
		logger.String("status", string(res.Status)),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return res
}

// fetch runs both stages. In parallel mode each branch writes its own slot
// and the join reads them after both finish; if a branch does not complete,
// both stages are rerun one after the other.
func (e *Engine) fetch(ctx context.Context, symbol string, period int, tf repository.Timeframe) (models.IndicatorSet, models.SentimentSnapshot) {
	if !e.parallel {
		return e.sequential(ctx, symbol, period, tf)
	}

	began := time.Now()
	var (
		wg     sync.WaitGroup
		ind    models.IndicatorSet
		sent   models.SentimentSnapshot
		indOK  bool
		sentOK bool
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		ind, indOK = e.runQuant(ctx, symbol, period, tf)
	}()
	go func() {
		defer wg.Done()
		sent, sentOK = e.runSentiment(ctx, symbol)
	}()
	wg.Wait()

	if indOK && sentOK {
		e.log.Debug("parallel fetch complete", logger.Symbol(symbol), logger.Duration("duration_ms", time.Since(began)))
		return ind, sent
	}

	e.log.Warn("parallel fetch incomplete, retrying sequentially",
		logger.Symbol(symbol), logger.Bool("quant_ok", indOK), logger.Bool("sentiment_ok", sentOK))
	e.metrics.RecordError("parallel_fetch")
	return e.sequential(ctx, symbol, period, tf)
}

func (e *Engine) sequential(ctx context.Context, symbol string, period int, tf repository.Timeframe) (models.IndicatorSet, models.SentimentSnapshot) {
	ind, ok := e.runQuant(ctx, symbol, period, tf)
	if !ok {
		ind = models.EmptyIndicatorSet(symbol, period, 0)
	}
	sent, ok := e.runSentiment(ctx, symbol)
	if !ok {
		sent = models.EmptySentimentSnapshot(symbol)
	}
	return ind, sent
}

func (e *Engine) runQuant(ctx context.Context, symbol string, period int, tf repository.Timeframe) (set models.IndicatorSet, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("quant stage panicked", logger.Symbol(symbol), logger.Error(fmt.Errorf("%v", r)))
			ok = false
		}
	}()
	return e.quant.Analyze(ctx, symbol, period, tf), true
}

func (e *Engine) runSentiment(ctx context.Context, symbol string) (snap models.SentimentSnapshot, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("sentiment stage panicked", logger.Symbol(symbol), logger.Error(fmt.Errorf("%v", r)))
			ok = false
		}
	}()
	return e.sentiment.Analyze(ctx, symbol), true
}

// Indicators exposes the quant stage for callers that need it alone.
func (e *Engine) Indicators(ctx context.Context, symbol string, period int, tf repository.Timeframe) models.IndicatorSet {
	ind, ok := e.runQuant(ctx, symbol, period, tf)
	if !ok {
		return models.EmptyIndicatorSet(symbol, period, 0)
	}
	return ind
}

// Sentiment exposes the sentiment stage for callers that need it alone.
func (e *Engine) Sentiment(ctx context.Context, symbol string) models.SentimentSnapshot {
	snap, ok := e.runSentiment(ctx, symbol)
	if !ok {
		return models.EmptySentimentSnapshot(symbol)
	}
	return snap
}
