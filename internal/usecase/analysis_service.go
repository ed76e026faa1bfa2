package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	domsvc "FinFusion/internal/domain/service"
	"FinFusion/pkg/logger"
	"FinFusion/pkg/util"
)

// StageRunner is the fusion engine plus access to its two input stages.
type StageRunner interface {
	domsvc.FusionAnalyzer
	Indicators(ctx context.Context, symbol string, period int, tf domrepo.Timeframe) models.IndicatorSet
	Sentiment(ctx context.Context, symbol string) models.SentimentSnapshot
}

// Dispatcher hands a persisted analysis to downstream consumers.
type Dispatcher interface {
	Process(ctx context.Context, a *models.FinalAnalysis) error
}

// Broadcaster pushes an analysis to live subscribers. It must not block.
type Broadcaster interface {
	Broadcast(a *models.FinalAnalysis)
}

// Invalidator drops cached stage results for a symbol.
type Invalidator interface {
	Invalidate(ctx context.Context, symbol string) error
}

// AnalysisService is the entry point of the analysis pipeline.
type AnalysisService struct {
	instruments domrepo.InstrumentRepository
	stages      StageRunner
	regime      domsvc.RegimeClassifier
	recommender domsvc.Recommender
	store       domrepo.AnalysisStore
	dispatcher  Dispatcher
	broadcaster Broadcaster
	invalidator Invalidator
	metrics     domrepo.Metrics
	log         *logger.Logger
	timeout     time.Duration
	batchLimit  int
}

type ServiceOption func(*AnalysisService)

func WithDispatcher(d Dispatcher) ServiceOption          { return func(s *AnalysisService) { s.dispatcher = d } }
func WithBroadcaster(b Broadcaster) ServiceOption        { return func(s *AnalysisService) { s.broadcaster = b } }
func WithInvalidator(i Invalidator) ServiceOption        { return func(s *AnalysisService) { s.invalidator = i } }
func WithServiceMetrics(m domrepo.Metrics) ServiceOption { return func(s *AnalysisService) { s.metrics = m } }
func WithServiceLogger(l *logger.Logger) ServiceOption   { return func(s *AnalysisService) { s.log = l } }

// WithTimeout bounds a single Analyze call. Zero disables the bound.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *AnalysisService) { s.timeout = d }
}

// WithBatchConcurrency caps the number of analyses AnalyzeBatch runs at once.
func WithBatchConcurrency(n int) ServiceOption {
	return func(s *AnalysisService) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

func NewAnalysisService(
	instruments domrepo.InstrumentRepository,
	stages StageRunner,
	regime domsvc.RegimeClassifier,
	recommender domsvc.Recommender,
	store domrepo.AnalysisStore,
	opts ...ServiceOption,
) *AnalysisService {
	s := &AnalysisService{
		instruments: instruments,
		stages:      stages,
		regime:      regime,
		recommender: recommender,
		store:       store,
		metrics:     domrepo.NopMetrics{},
		log:         logger.Nop(),
		timeout:     60 * time.Second,
		batchLimit:  4,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Analyze runs the full pipeline for one symbol. Only invalid or unknown
// symbols fail; every later stage degrades instead.
func (s *AnalysisService) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.FinalAnalysis, error) {
	symbol, err := s.resolve(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	tf := domrepo.NormalizeTimeframe(req.Timeframe)
	period := req.Period
	if period <= 0 {
		period = 250
	}

	fusion := s.stages.Generate(ctx, symbol, period, tf)
	regime := s.regime.Classify(stageInputs(symbol, period, fusion))
	analysis := s.recommender.Recommend(ctx, fusion, regime)
	analysis.UserID = req.UserID

	s.deliver(context.WithoutCancel(ctx), &analysis)

	s.metrics.RecordLatency("analysis", time.Since(start).Seconds())
	s.log.Info("analysis completed",
		logger.Symbol(symbol),
		logger.String("id", analysis.ID),
		logger.String("recommendation", string(analysis.Recommendation)),
		logger.Float64("score", analysis.FinalScore),
		logger.String("source", string(analysis.Metadata.Source)),
		logger.String("regime", string(regime.Label)),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return &analysis, nil
}

// AnalyzeBatch analyzes symbols with a bounded worker pool. Results keep the
// input order; a failing symbol does not stop the others.
func (s *AnalysisService) AnalyzeBatch(ctx context.Context, symbols []string, userID string) []models.BatchItem {
	items := make([]models.BatchItem, len(symbols))
	var g errgroup.Group
	g.SetLimit(s.batchLimit)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			items[i].Symbol = sym
			a, err := s.Analyze(ctx, models.AnalysisRequest{Symbol: sym, UserID: userID})
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Symbol = a.Symbol
			items[i].Analysis = a
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// History returns persisted analyses for symbol, newest first.
func (s *AnalysisService) History(ctx context.Context, symbol string, limit int) ([]models.FinalAnalysis, error) {
	sym, ok := util.NormalizeSymbol(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidSymbol, symbol)
	}
	if limit <= 0 {
		limit = 20
	}
	out, err := s.store.History(ctx, sym, limit)
	if err != nil {
		s.metrics.RecordError("history")
		return nil, fmt.Errorf("history %s: %w", sym, err)
	}
	return out, nil
}

// Fusion returns the (memoized) FusionResult without calling the reasoner.
func (s *AnalysisService) Fusion(ctx context.Context, symbol string, period int, tf string) (models.FusionResult, error) {
	sym, err := s.resolve(ctx, symbol)
	if err != nil {
		return models.FusionResult{}, err
	}
	return s.stages.Generate(ctx, sym, period, domrepo.NormalizeTimeframe(tf)), nil
}

func (s *AnalysisService) Indicators(ctx context.Context, symbol string, period int, tf string) (models.IndicatorSet, error) {
	sym, err := s.resolve(ctx, symbol)
	if err != nil {
		return models.IndicatorSet{}, err
	}
	return s.stages.Indicators(ctx, sym, period, domrepo.NormalizeTimeframe(tf)), nil
}

func (s *AnalysisService) Sentiment(ctx context.Context, symbol string) (models.SentimentSnapshot, error) {
	sym, err := s.resolve(ctx, symbol)
	if err != nil {
		return models.SentimentSnapshot{}, err
	}
	return s.stages.Sentiment(ctx, sym), nil
}

// Regime classifies the symbol from the same inputs the fusion stage used.
func (s *AnalysisService) Regime(ctx context.Context, symbol string, period int, tf string) (models.Regime, error) {
	sym, err := s.resolve(ctx, symbol)
	if err != nil {
		return models.Regime{}, err
	}
	fusion := s.stages.Generate(ctx, sym, period, domrepo.NormalizeTimeframe(tf))
	return s.regime.Classify(stageInputs(sym, period, fusion)), nil
}

// Invalidate drops every cached stage result of symbol.
func (s *AnalysisService) Invalidate(ctx context.Context, symbol string) error {
	sym, ok := util.NormalizeSymbol(symbol)
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrInvalidSymbol, symbol)
	}
	if s.invalidator == nil {
		return nil
	}
	return s.invalidator.Invalidate(ctx, sym)
}

func (s *AnalysisService) resolve(ctx context.Context, raw string) (string, error) {
	sym, ok := util.NormalizeSymbol(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidSymbol, raw)
	}
	if _, err := s.instruments.GetBySymbol(ctx, sym); err != nil {
		if errors.Is(err, models.ErrInstrumentNotFound) {
			return "", err
		}
		s.metrics.RecordError("instrument_lookup")
		return "", fmt.Errorf("instrument lookup %s: %w", sym, err)
	}
	return sym, nil
}

// deliver persists, publishes and broadcasts. Failures are logged and counted.
func (s *AnalysisService) deliver(ctx context.Context, a *models.FinalAnalysis) {
	if s.store != nil {
		if err := s.store.Save(ctx, a); err != nil {
			s.metrics.RecordError("persist")
			s.log.Error("persist analysis failed", logger.Symbol(a.Symbol), logger.String("id", a.ID), logger.Error(err))
		}
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.Process(ctx, a); err != nil {
			s.metrics.RecordError("publish")
			s.log.Warn("publish analysis failed", logger.Symbol(a.Symbol), logger.String("id", a.ID), logger.Error(err))
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(a)
	}
}

func stageInputs(symbol string, period int, f models.FusionResult) (models.IndicatorSet, models.SentimentSnapshot) {
	ind := models.EmptyIndicatorSet(symbol, period, 0)
	if f.Indicators != nil {
		ind = *f.Indicators
	}
	sent := models.EmptySentimentSnapshot(symbol)
	if f.Sentiment != nil {
		sent = *f.Sentiment
	}
	return ind, sent
}
