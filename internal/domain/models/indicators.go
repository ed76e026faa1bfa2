package models

import "time"

type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

type VolatilityRegime string

const (
	VolatilityLow    VolatilityRegime = "low"
	VolatilityMedium VolatilityRegime = "medium"
	VolatilityHigh   VolatilityRegime = "high"
)

type MACD struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

type TrendIndicators struct {
	EMA20     float64   `json:"ema_20"`
	EMA50     float64   `json:"ema_50"`
	EMA200    float64   `json:"ema_200"`
	SMA20     float64   `json:"sma_20"`
	SMA50     float64   `json:"sma_50"`
	SMA200    float64   `json:"sma_200"`
	ADX       float64   `json:"adx"`
	PlusDI    float64   `json:"plus_di"`
	MinusDI   float64   `json:"minus_di"`
	MACD      MACD      `json:"macd"`
	Strength  float64   `json:"strength"`  // [-1,1]
	Stability float64   `json:"stability"` // R² of a linear fit, [0,1]
	Direction Direction `json:"direction"`
	Score     float64   `json:"score"`
}

type MomentumIndicators struct {
	RSI       float64 `json:"rsi"`
	StochK    float64 `json:"stoch_k"`
	StochD    float64 `json:"stoch_d"`
	WilliamsR float64 `json:"williams_r"`
	Momentum  float64 `json:"momentum"`
	ROC       float64 `json:"roc"`
	CCI       float64 `json:"cci"`
	Score     float64 `json:"score"`
}

type VolatilityIndicators struct {
	ATR                  float64          `json:"atr"`
	ATRPercent           float64          `json:"atr_percent"`
	BollingerUpper       float64          `json:"bollinger_upper"`
	BollingerMiddle      float64          `json:"bollinger_middle"`
	BollingerLower       float64          `json:"bollinger_lower"`
	BollingerBandwidth   float64          `json:"bollinger_bandwidth"`
	BollingerPercentB    float64          `json:"bollinger_percent_b"`
	HistoricalVolatility float64          `json:"historical_volatility"`
	VolatilityRatio      float64          `json:"volatility_ratio"`
	Clustering           float64          `json:"clustering"`
	Regime               VolatilityRegime `json:"regime"`
	Score                float64          `json:"score"`
}

type VolumeIndicators struct {
	SMA20         float64 `json:"sma_20"`
	Ratio         float64 `json:"ratio"`
	OBV           float64 `json:"obv"`
	OBVTrend      float64 `json:"obv_trend"`
	VWAP          float64 `json:"vwap"`
	POC           float64 `json:"poc"`
	ValueAreaHigh float64 `json:"value_area_high"`
	ValueAreaLow  float64 `json:"value_area_low"`
	Score         float64 `json:"score"`
}

// FamilyWeights are the cross-family weights of the composite. They sum to 1.
type FamilyWeights struct {
	Trend      float64 `json:"trend"`
	Momentum   float64 `json:"momentum"`
	Volatility float64 `json:"volatility"`
	Volume     float64 `json:"volume"`
}

type Composite struct {
	Score      float64       `json:"score"`
	Confidence float64       `json:"confidence"`
	Weights    FamilyWeights `json:"weights"`
}

type KeyLevels struct {
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
	POC        float64   `json:"poc"`
	VWAP       float64   `json:"vwap"`
}

// IndicatorSet is the IndicatorEngine output for one symbol and lookback.
type IndicatorSet struct {
	Symbol       string               `json:"symbol"`
	Period       int                  `json:"period"`
	Bars         int                  `json:"bars"`
	CurrentPrice float64              `json:"current_price"`
	Trend        TrendIndicators      `json:"trend"`
	Momentum     MomentumIndicators   `json:"momentum"`
	Volatility   VolatilityIndicators `json:"volatility"`
	Volume       VolumeIndicators     `json:"volume"`
	Composite    Composite            `json:"composite"`
	Levels       KeyLevels            `json:"levels"`
	Status       Status               `json:"status"`
	ComputedAt   time.Time            `json:"computed_at"`
}

// EmptyIndicatorSet is the neutral result for short or missing series.
func EmptyIndicatorSet(symbol string, period, bars int) IndicatorSet {
	return IndicatorSet{
		Symbol: symbol,
		Period: period,
		Bars:   bars,
		Trend:  TrendIndicators{Direction: DirectionNeutral},
		Momentum: MomentumIndicators{
			RSI:       50,
			StochK:    50,
			StochD:    50,
			WilliamsR: -50,
		},
		Volatility: VolatilityIndicators{Regime: VolatilityMedium},
		Volume:     VolumeIndicators{Ratio: 1},
		Composite: Composite{
			Weights: FamilyWeights{Trend: 0.30, Momentum: 0.30, Volatility: 0.20, Volume: 0.20},
		},
		Levels:     KeyLevels{Support: []float64{}, Resistance: []float64{}},
		Status:     StatusUnavailable,
		ComputedAt: time.Now().UTC(),
	}
}
