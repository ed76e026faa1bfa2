package service

import (
	"context"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
)

// QuantAnalyzer computes (and memoizes) the IndicatorSet for a symbol.
type QuantAnalyzer interface {
	Analyze(ctx context.Context, symbol string, period int, tf repository.Timeframe) models.IndicatorSet
}

// SentimentAnalyzer computes (and memoizes) the SentimentSnapshot for a symbol.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, symbol string) models.SentimentSnapshot
}

// RegimeClassifier labels the market state from both engine outputs.
type RegimeClassifier interface {
	Classify(ind models.IndicatorSet, sent models.SentimentSnapshot) models.Regime
}

// FusionAnalyzer combines quant and sentiment into a FusionResult.
type FusionAnalyzer interface {
	Generate(ctx context.Context, symbol string, period int, tf repository.Timeframe) models.FusionResult
}

// Recommender turns a FusionResult into a FinalAnalysis. It always returns a usable result.
type Recommender interface {
	Recommend(ctx context.Context, fusion models.FusionResult, regime models.Regime) models.FinalAnalysis
}

// Prompt is one request to the external reasoner.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completion is the raw reasoner answer.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Reasoner is the external reasoning service (an LLM endpoint).
type Reasoner interface {
	Complete(ctx context.Context, p Prompt) (Completion, error)
	Name() string
}
