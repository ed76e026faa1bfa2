package repository

import (
	"context"
	"time"

	"FinFusion/internal/domain/models"
)

// MarketDataSource provides read-only access to OHLCV bars.
type MarketDataSource interface {
	GetBars(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Bar, error)
	GetLatestNBars(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Bar, error)
}

// InstrumentRepository answers the "is this symbol known" precondition.
type InstrumentRepository interface {
	GetBySymbol(ctx context.Context, symbol string) (*models.Instrument, error)
	List(ctx context.Context, activeOnly bool) ([]models.Instrument, error)
}

// NewsSource, SocialSource and AnalystSource are the sentiment inputs.
// Any of them may fail; the caller treats failure as zero-confidence input.
type NewsSource interface {
	FetchNews(ctx context.Context, symbol string) ([]models.NewsArticle, error)
}

type SocialSource interface {
	FetchSocial(ctx context.Context, symbol string) (*models.SocialAggregate, error)
}

type AnalystSource interface {
	FetchAnalystRatings(ctx context.Context, symbol string) ([]models.AnalystRating, error)
}

// SentimentHistory keeps the rolling window used for sentiment trend.
type SentimentHistory interface {
	Load(ctx context.Context, symbol string) ([]models.SentimentPoint, error)
	Append(ctx context.Context, symbol string, p models.SentimentPoint) error
}

// AnalysisStore is the append-only FinalAnalysis history.
type AnalysisStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Save(ctx context.Context, a *models.FinalAnalysis) error
	History(ctx context.Context, symbol string, limit int) ([]models.FinalAnalysis, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// AnalysisPublisher fans completed analyses out to other services.
type AnalysisPublisher interface {
	Publish(ctx context.Context, a *models.FinalAnalysis) error
	Close() error
}

// Metrics is injected into every stage. Implementations must be safe for concurrent use.
type Metrics interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
	RecordLatency(op string, seconds float64)
	RecordSourceFailure(source string)
	RecordReasonerAttempt(outcome string)
	RecordFallback(symbol string)
	RecordAnalysis(recommendation string)
	RecordError(kind string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordCacheHit(string)         {}
func (NopMetrics) RecordCacheMiss(string)        {}
func (NopMetrics) RecordLatency(string, float64) {}
func (NopMetrics) RecordSourceFailure(string)    {}
func (NopMetrics) RecordReasonerAttempt(string)  {}
func (NopMetrics) RecordFallback(string)         {}
func (NopMetrics) RecordAnalysis(string)         {}
func (NopMetrics) RecordError(string)            {}
