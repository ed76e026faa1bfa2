package models

import "time"

type PriceTargets struct {
	Conservative float64 `json:"conservative" validate:"gte=0"`
	Moderate     float64 `json:"moderate" validate:"gte=0"`
	Aggressive   float64 `json:"aggressive" validate:"gte=0"`
	StopLoss     float64 `json:"stop_loss" validate:"gte=0"`
}

// IsZero reports whether no targets were set.
func (p PriceTargets) IsZero() bool {
	return p == PriceTargets{}
}

// AnalysisSource records which path of the orchestrator produced the analysis.
type AnalysisSource string

const (
	SourceReasoner  AnalysisSource = "reasoner"
	SourceCorrected AnalysisSource = "corrected"
	SourceFallback  AnalysisSource = "fallback"
)

type AnalysisMetadata struct {
	Source           AnalysisSource          `json:"source"`
	Attempts         int                     `json:"attempts"`
	Temperature      float64                 `json:"temperature"`
	Model            string                  `json:"model,omitempty"`
	TokensEstimated  int                     `json:"tokens_estimated"`
	CostEstimate     float64                 `json:"cost_estimate"`
	LowConfidence    bool                    `json:"low_confidence"`
	ValidationErrors []string                `json:"validation_errors,omitempty"`
	Regime           *Regime                 `json:"regime,omitempty"`
	Trail            []RecommendationAttempt `json:"trail,omitempty"`
	DurationMs       int64                   `json:"duration_ms"`
}

// FinalAnalysis is the persisted, append-only pipeline output.
type FinalAnalysis struct {
	ID                         string           `json:"id"`
	Symbol                     string           `json:"symbol"`
	UserID                     string           `json:"user_id,omitempty"`
	FinalScore                 float64          `json:"final_score"`
	Recommendation             Action           `json:"recommendation"`
	Confidence                 float64          `json:"confidence"`
	TimeHorizon                Horizon          `json:"time_horizon"`
	RiskLevel                  RiskLevel        `json:"risk_level"`
	PositionSizeRecommendation float64          `json:"position_size_recommendation"`
	PriceTargets               PriceTargets     `json:"price_targets"`
	TopDrivers                 []string         `json:"top_drivers"`
	EvidenceSentences          []string         `json:"evidence_sentences"`
	ExplainabilityText         string           `json:"explainability_text"`
	RiskNotes                  []string         `json:"risk_notes"`
	KeyLevels                  KeyLevels        `json:"key_levels"`
	Catalysts                  []string         `json:"catalysts"`
	TechnicalSummary           string           `json:"technical_summary"`
	FundamentalSummary         string           `json:"fundamental_summary"`
	SentimentSummary           string           `json:"sentiment_summary"`
	FusionData                 FusionResult     `json:"fusion_data"`
	Metadata                   AnalysisMetadata `json:"metadata"`
	CreatedAt                  time.Time        `json:"created_at"`
}

// ReasonerOutput is the JSON document the external reasoner must return.
type ReasonerOutput struct {
	FinalScore                 float64      `json:"final_score" validate:"gte=-1,lte=1"`
	Recommendation             Action       `json:"recommendation" validate:"required,oneof=STRONG_BUY BUY HOLD SELL STRONG_SELL"`
	Confidence                 float64      `json:"confidence" validate:"gte=0,lte=1"`
	TimeHorizon                Horizon      `json:"time_horizon" validate:"required,oneof=short_term medium_term long_term"`
	RiskLevel                  RiskLevel    `json:"risk_level" validate:"required,oneof=LOW MEDIUM HIGH"`
	PositionSizeRecommendation float64      `json:"position_size_recommendation" validate:"gte=1,lte=25"`
	PriceTargets               PriceTargets `json:"price_targets"`
	TopDrivers                 []string     `json:"top_drivers"`
	EvidenceSentences          []string     `json:"evidence_sentences"`
	ExplainabilityText         string       `json:"explainability_text" validate:"required"`
	RiskNotes                  []string     `json:"risk_notes"`
	Catalysts                  []string     `json:"catalysts"`
	TechnicalSummary           string       `json:"technical_summary"`
	FundamentalSummary         string       `json:"fundamental_summary"`
	SentimentSummary           string       `json:"sentiment_summary"`
}

// RecommendationAttempt tracks one pass of the reasoner retry loop. Only a
// prefix of the raw answer is kept.
type RecommendationAttempt struct {
	Number           int      `json:"number"`
	Temperature      float64  `json:"temperature"`
	RawResponse      string   `json:"raw_response,omitempty"`
	ValidationErrors []string `json:"validation_errors"`
	Outcome          string   `json:"outcome"`
}
