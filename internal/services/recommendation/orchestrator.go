package recommendation

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	"FinFusion/internal/domain/service"
	"FinFusion/internal/services/reasoner"
	"FinFusion/pkg/logger"
)

// Attempt outcomes, also used as metric labels.
const (
	OutcomeAccepted  = "accepted"
	OutcomeCorrected = "corrected"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// MaxTrailResponse caps the raw reasoner text stored per attempt.
const MaxTrailResponse = 512

// Orchestrator asks the reasoner for a final analysis, validates and corrects
// the answer, retries with a rising temperature and falls back to a
// rule-based result when every attempt fails.
type Orchestrator struct {
	reasoner    service.Reasoner
	maxRetries  int
	temperature float64
	step        float64
	delay       time.Duration
	maxTokens   int
	costPer1K   float64
	metrics     repository.Metrics
	log         *logger.Logger
	now         func() time.Time
	newID       func() string
}

var _ service.Recommender = (*Orchestrator)(nil)

type Option func(*Orchestrator)

// WithRetries sets how many attempts follow the first one.
func WithRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithTemperature sets the first-attempt temperature and the per-retry increase.
func WithTemperature(initial, step float64) Option {
	return func(o *Orchestrator) {
		o.temperature = initial
		o.step = step
	}
}

func WithRetryDelay(d time.Duration) Option   { return func(o *Orchestrator) { o.delay = d } }
func WithMaxTokens(n int) Option              { return func(o *Orchestrator) { o.maxTokens = n } }
func WithCostPer1K(c float64) Option          { return func(o *Orchestrator) { o.costPer1K = c } }
func WithMetrics(m repository.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }
func WithLogger(l *logger.Logger) Option      { return func(o *Orchestrator) { o.log = l } }
func WithClock(now func() time.Time) Option   { return func(o *Orchestrator) { o.now = now } }
func WithIDGenerator(f func() string) Option  { return func(o *Orchestrator) { o.newID = f } }

// NewOrchestrator accepts a nil reasoner, in which case every analysis is
// produced by the fallback.
func NewOrchestrator(r service.Reasoner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		reasoner:    r,
		maxRetries:  2,
		temperature: 0.3,
		step:        0.2,
		delay:       time.Second,
		maxTokens:   2000,
		costPer1K:   0.009,
		metrics:     repository.NopMetrics{},
		log:         logger.Nop(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TemperatureFor returns the temperature of attempt n, counting from zero.
func (o *Orchestrator) TemperatureFor(n int) float64 {
	return o.temperature + o.step*float64(n)
}

type accepted struct {
	out     models.ReasonerOutput
	source  models.AnalysisSource
	model   string
	tokens  int
	temp    float64
	attempt int
	errs    []string
}

// Recommend never fails. A panic anywhere in the loop yields the fallback.
func (o *Orchestrator) Recommend(ctx context.Context, f models.FusionResult, regime models.Regime) (res models.FinalAnalysis) {
	start := time.Now()
	log := o.log.With(logger.Symbol(f.Symbol))
	var trail []models.RecommendationAttempt

	defer func() {
		if r := recover(); r != nil {
			log.Error("recommendation panicked", logger.Error(fmt.Errorf("%v", r)))
			o.metrics.RecordError("recommendation_panic")
			res = o.fallback(f, regime, trail, start)
		}
		o.metrics.RecordLatency("recommendation", time.Since(start).Seconds())
	}()

	if o.reasoner == nil {
		log.Info("no reasoner configured, using fallback")
		return o.fallback(f, regime, nil, start)
	}

	prompt := service.Prompt{System: SystemPrompt, User: BuildUserPrompt(f, regime), MaxTokens: o.maxTokens}
	attempts := o.maxRetries + 1

	for n := 0; n < attempts; n++ {
		if n > 0 && !o.wait(ctx) {
			log.Warn("context done between attempts", logger.Error(ctx.Err()))
			break
		}
		prompt.Temperature = o.TemperatureFor(n)

		acc, rec := o.attempt(ctx, log, f, prompt, n+1)
		trail = append(trail, rec)
		if acc != nil {
			return o.build(f, regime, *acc, trail, start)
		}
	}

	log.Warn("reasoner attempts exhausted, using fallback", logger.Int("attempts", len(trail)))
	return o.fallback(f, regime, trail, start)
}

func (o *Orchestrator) attempt(ctx context.Context, log *logger.Logger, f models.FusionResult, p service.Prompt, n int) (*accepted, models.RecommendationAttempt) {
	rec := models.RecommendationAttempt{Number: n, Temperature: p.Temperature}
	fields := []logger.Field{logger.Int("attempt", n), logger.Float64("temperature", p.Temperature)}

	comp, err := o.reasoner.Complete(ctx, p)
	if err != nil {
		rec.Outcome = OutcomeFailed
		rec.ValidationErrors = []string{err.Error()}
		o.metrics.RecordReasonerAttempt(OutcomeFailed)
		log.Warn("reasoner call failed", append(fields, logger.Error(err))...)
		return nil, rec
	}
	rec.RawResponse = truncate(comp.Text, MaxTrailResponse)

	out, missing, err := Parse(comp.Text)
	if err != nil || len(missing) > 0 {
		if err != nil {
			missing = append(missing, err.Error())
		}
		return o.reject(log, rec, fields, missing)
	}

	source := models.SourceReasoner
	schemaErrs := SchemaErrors(out)
	if len(schemaErrs) > 0 {
		out = Correct(out, f)
		if remaining := SchemaErrors(out); len(remaining) > 0 {
			return o.reject(log, rec, fields, append(schemaErrs, remaining...))
		}
		source = models.SourceCorrected
		log.Info("reasoner output corrected", append(fields, logger.Strings("errors", schemaErrs))...)
	}

	if bizErrs := BusinessErrors(out, f.CurrentPrice); len(bizErrs) > 0 {
		return o.reject(log, rec, fields, append(schemaErrs, bizErrs...))
	}

	outcome := OutcomeAccepted
	if source == models.SourceCorrected {
		outcome = OutcomeCorrected
	}
	rec.Outcome = outcome
	rec.ValidationErrors = schemaErrs
	o.metrics.RecordReasonerAttempt(outcome)

	tokens := reasoner.EstimateTokens(p.System, p.User, comp.Text)
	log.Info("reasoner output accepted", append(fields,
		logger.String("outcome", outcome),
		logger.String("recommendation", string(out.Recommendation)),
		logger.Int("tokens_estimated", tokens),
		logger.Float64("cost_estimate", reasoner.EstimateCost(tokens, o.costPer1K)),
	)...)

	return &accepted{
		out:     out,
		source:  source,
		model:   comp.Model,
		tokens:  tokens,
		temp:    p.Temperature,
		attempt: n,
		errs:    schemaErrs,
	}, rec
}

func (o *Orchestrator) reject(log *logger.Logger, rec models.RecommendationAttempt, fields []logger.Field, errs []string) (*accepted, models.RecommendationAttempt) {
	rec.Outcome = OutcomeRejected
	rec.ValidationErrors = errs
	o.metrics.RecordReasonerAttempt(OutcomeRejected)
	log.Warn("reasoner output rejected", append(fields, logger.Strings("errors", errs))...)
	return nil, rec
}

// wait sleeps the inter-attempt delay. It reports false if ctx ends first.
func (o *Orchestrator) wait(ctx context.Context) bool {
	if o.delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(o.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (o *Orchestrator) fallback(f models.FusionResult, regime models.Regime, trail []models.RecommendationAttempt, start time.Time) models.FinalAnalysis {
	o.metrics.RecordFallback(f.Symbol)
	var errs []string
	if len(trail) > 0 {
		errs = trail[len(trail)-1].ValidationErrors
	}
	res := o.build(f, regime, accepted{
		out:     Fallback(f),
		source:  models.SourceFallback,
		model:   "rule-based",
		attempt: len(trail),
		errs:    errs,
	}, trail, start)
	o.log.Info("fallback recommendation",
		logger.Symbol(f.Symbol),
		logger.String("recommendation", string(res.Recommendation)),
		logger.Int("attempts", len(trail)),
	)
	return res
}

func (o *Orchestrator) build(f models.FusionResult, regime models.Regime, a accepted, trail []models.RecommendationAttempt, start time.Time) models.FinalAnalysis {
	out := a.out
	r := regime

	res := models.FinalAnalysis{
		ID:                         o.newID(),
		Symbol:                     f.Symbol,
		FinalScore:                 out.FinalScore,
		Recommendation:             out.Recommendation,
		Confidence:                 out.Confidence,
		TimeHorizon:                out.TimeHorizon,
		RiskLevel:                  out.RiskLevel,
		PositionSizeRecommendation: out.PositionSizeRecommendation,
		PriceTargets:               out.PriceTargets,
		TopDrivers:                 nonNil(out.TopDrivers),
		EvidenceSentences:          nonNil(out.EvidenceSentences),
		ExplainabilityText:         out.ExplainabilityText,
		RiskNotes:                  nonNil(out.RiskNotes),
		KeyLevels:                  f.KeyLevels,
		Catalysts:                  nonNil(out.Catalysts),
		TechnicalSummary:           out.TechnicalSummary,
		FundamentalSummary:         out.FundamentalSummary,
		SentimentSummary:           out.SentimentSummary,
		FusionData:                 f,
		Metadata: models.AnalysisMetadata{
			Source:           a.source,
			Attempts:         a.attempt,
			Temperature:      a.temp,
			Model:            a.model,
			TokensEstimated:  a.tokens,
			CostEstimate:     reasoner.EstimateCost(a.tokens, o.costPer1K),
			LowConfidence:    a.source == models.SourceFallback || out.Confidence < FallbackConfidence,
			ValidationErrors: a.errs,
			Regime:           &r,
			Trail:            trail,
			DurationMs:       time.Since(start).Milliseconds(),
		},
		CreatedAt: o.now(),
	}
	o.metrics.RecordAnalysis(string(res.Recommendation))
	return res
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
