package indicators

import (
	"context"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	"FinFusion/internal/domain/service"
	svccache "FinFusion/internal/service/cache"
	"FinFusion/pkg/logger"
)

// Provider loads bars from the market data source and memoizes the engine output.
type Provider struct {
	engine  *Engine
	source  repository.MarketDataSource
	memo    *svccache.Memo
	ttl     time.Duration
	metrics repository.Metrics
	log     *logger.Logger
}

var _ service.QuantAnalyzer = (*Provider)(nil)

func NewProvider(engine *Engine, source repository.MarketDataSource, memo *svccache.Memo, ttl time.Duration, metrics repository.Metrics, log *logger.Logger) *Provider {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{engine: engine, source: source, memo: memo, ttl: ttl, metrics: metrics, log: log}
}

// Analyze never fails: a market data error yields the empty IndicatorSet,
// which is returned but not cached.
func (p *Provider) Analyze(ctx context.Context, symbol string, period int, tf repository.Timeframe) models.IndicatorSet {
	compute := func(ctx context.Context) models.IndicatorSet {
		return p.compute(ctx, symbol, period, tf)
	}
	if p.memo == nil {
		return compute(ctx)
	}
	return svccache.Remember(ctx, p.memo, svccache.QuantCache, svccache.QuantKey(symbol, period, tf), p.ttl, compute,
		func(s models.IndicatorSet) bool { return s.Status != models.StatusUnavailable })
}

func (p *Provider) compute(ctx context.Context, symbol string, period int, tf repository.Timeframe) models.IndicatorSet {
	start := time.Now()
	defer func() { p.metrics.RecordLatency("indicators", time.Since(start).Seconds()) }()

	bars, err := p.source.GetLatestNBars(ctx, symbol, period, tf)
	if err != nil {
		p.log.Warn("market data unavailable", logger.Symbol(symbol), logger.Int("period", period), logger.Error(err))
		p.metrics.RecordSourceFailure("market_data")
		return models.EmptyIndicatorSet(symbol, period, 0)
	}

	set := p.engine.Annualized(tf.BarsPerYear()).Compute(symbol, bars, period)
	if set.Status == models.StatusUnavailable {
		p.log.Info("insufficient bars for indicators", logger.Symbol(symbol), logger.Int("bars", len(bars)))
	}
	return set
}
