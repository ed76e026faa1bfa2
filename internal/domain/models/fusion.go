package models

import "time"

type Action string

const (
	ActionStrongBuy  Action = "STRONG_BUY"
	ActionBuy        Action = "BUY"
	ActionHold       Action = "HOLD"
	ActionSell       Action = "SELL"
	ActionStrongSell Action = "STRONG_SELL"
)

// IsBuy reports whether the action is on the long side.
func (a Action) IsBuy() bool { return a == ActionBuy || a == ActionStrongBuy }

// IsSell reports whether the action is on the short side.
func (a Action) IsSell() bool { return a == ActionSell || a == ActionStrongSell }

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

type Horizon string

const (
	HorizonShort  Horizon = "short_term"
	HorizonMedium Horizon = "medium_term"
	HorizonLong   Horizon = "long_term"
)

type Recommendation struct {
	Action    Action  `json:"action"`
	Rationale string  `json:"rationale"`
	Strength  float64 `json:"strength"`
}

// Thresholds is the dynamic five-tier ladder used for one fusion.
type Thresholds struct {
	StrongBuy  float64 `json:"strong_buy"`
	Buy        float64 `json:"buy"`
	Sell       float64 `json:"sell"`
	StrongSell float64 `json:"strong_sell"`
}

type DriverSource string

const (
	DriverQuant     DriverSource = "quant"
	DriverSentiment DriverSource = "sentiment"
)

// Driver is one named sub-signal and its weighted impact on the fusion score.
type Driver struct {
	Name   string       `json:"name"`
	Source DriverSource `json:"source"`
	Value  float64      `json:"value"`
	Impact float64      `json:"impact"`
}

type RiskFactors struct {
	Volatility          float64 `json:"volatility"`
	TrendWeakness       float64 `json:"trend_weakness"`
	SentimentDivergence float64 `json:"sentiment_divergence"`
	DataQuality         float64 `json:"data_quality"`
	VolumeAnomaly       float64 `json:"volume_anomaly"`
}

type RiskAssessment struct {
	Level       RiskLevel   `json:"level"`
	Score       float64     `json:"score"`
	Factors     RiskFactors `json:"factors"`
	Mitigations []string    `json:"mitigations"`
}

type PositionSizing struct {
	RecommendedSizePercent float64 `json:"recommended_size_percent"`
	BaseSizePercent        float64 `json:"base_size_percent"`
	SignalFactor           float64 `json:"signal_factor"`
	RiskFactor             float64 `json:"risk_factor"`
	ConfidenceFactor       float64 `json:"confidence_factor"`
}

type TimeHorizon struct {
	Horizon   Horizon `json:"horizon"`
	Rationale string  `json:"rationale"`
}

type Catalyst struct {
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
	Impact      float64 `json:"impact"`
}

// FusionResult is the FusionEngine output. It embeds the inputs it was derived from.
type FusionResult struct {
	Symbol              string             `json:"symbol"`
	FusionScore         float64            `json:"fusion_score"`
	Recommendation      Recommendation     `json:"recommendation"`
	Confidence          float64            `json:"confidence"`
	Alpha               float64            `json:"alpha"`
	QuantScore          float64            `json:"quant_score"`
	QuantConfidence     float64            `json:"quant_confidence"`
	SentimentScore      float64            `json:"sentiment_score"`
	SentimentConfidence float64            `json:"sentiment_confidence"`
	DataQuality         float64            `json:"data_quality"`
	Consistency         float64            `json:"consistency"`
	VolatilityRegime    VolatilityRegime   `json:"volatility_regime"`
	Thresholds          Thresholds         `json:"thresholds"`
	TopDrivers          []Driver           `json:"top_drivers"`
	RiskAssessment      RiskAssessment     `json:"risk_assessment"`
	PositionSizing      PositionSizing     `json:"position_sizing"`
	TimeHorizon         TimeHorizon        `json:"time_horizon"`
	KeyLevels           KeyLevels          `json:"key_levels"`
	Catalysts           []Catalyst         `json:"catalysts"`
	CurrentPrice        float64            `json:"current_price"`
	Indicators          *IndicatorSet      `json:"indicators,omitempty"`
	Sentiment           *SentimentSnapshot `json:"sentiment,omitempty"`
	Status              Status             `json:"status"`
	GeneratedAt         time.Time          `json:"generated_at"`
}

// EmptyFusionResult is the canonical neutral HOLD analysis.
func EmptyFusionResult(symbol string) FusionResult {
	return FusionResult{
		Symbol: symbol,
		Recommendation: Recommendation{
			Action:    ActionHold,
			Rationale: "insufficient data for a fused signal",
		},
		Alpha:            0.6,
		VolatilityRegime: VolatilityMedium,
		TopDrivers:       []Driver{},
		RiskAssessment: RiskAssessment{
			Level:       RiskHigh,
			Score:       1,
			Mitigations: []string{"wait for market and sentiment data before sizing a position"},
		},
		PositionSizing: PositionSizing{RecommendedSizePercent: 2, BaseSizePercent: 10},
		TimeHorizon: TimeHorizon{
			Horizon:   HorizonShort,
			Rationale: "no reliable signal; reassess once data is available",
		},
		KeyLevels:   KeyLevels{Support: []float64{}, Resistance: []float64{}},
		Catalysts:   []Catalyst{},
		Status:      StatusUnavailable,
		GeneratedAt: time.Now().UTC(),
	}
}
