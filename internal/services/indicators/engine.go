package indicators

import (
	"fmt"
	"math"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/services/features"
	"FinFusion/pkg/logger"
)

// MinBars is the shortest series the engine computes on; shorter input
// yields the empty IndicatorSet.
const MinBars = 50

// Annualized realized volatility bounds for the volatility regime.
const (
	lowVolatilityCeiling    = 0.15
	mediumVolatilityCeiling = 0.30
)

var regimeWeights = map[models.VolatilityRegime]models.FamilyWeights{
	models.VolatilityLow:    {Trend: 0.40, Momentum: 0.25, Volatility: 0.15, Volume: 0.20},
	models.VolatilityMedium: {Trend: 0.30, Momentum: 0.30, Volatility: 0.20, Volume: 0.20},
	models.VolatilityHigh:   {Trend: 0.20, Momentum: 0.35, Volatility: 0.25, Volume: 0.20},
}

// WeightsFor returns the cross-family composite weights for a volatility regime.
func WeightsFor(r models.VolatilityRegime) models.FamilyWeights {
	if w, ok := regimeWeights[r]; ok {
		return w
	}
	return regimeWeights[models.VolatilityMedium]
}

// Engine computes technical indicators from an OHLCV series. It is stateless
// and safe for concurrent use.
type Engine struct {
	barsPerYear float64
	minBars     int
	log         *logger.Logger
	now         func() time.Time
}

type Option func(*Engine)

func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		barsPerYear: 252,
		minBars:     MinBars,
		log:         logger.Nop(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Annualized returns a copy of the engine using barsPerYear, for series of a
// different timeframe.
func (e *Engine) Annualized(barsPerYear float64) *Engine {
	c := *e
	if barsPerYear > 0 {
		c.barsPerYear = barsPerYear
	}
	return &c
}

// Compute returns a structurally complete IndicatorSet for any input. The last
// `period` bars are used; fewer than MinBars yields the empty set.
func (e *Engine) Compute(symbol string, bars []models.Bar, period int) (set models.IndicatorSet) {
	if period > 0 && len(bars) > period {
		bars = bars[len(bars)-period:]
	}
	if len(bars) < e.minBars {
		return models.EmptyIndicatorSet(symbol, period, len(bars))
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("indicator computation panicked",
				logger.Symbol(symbol), logger.Int("bars", len(bars)), logger.Error(fmt.Errorf("%v", r)))
			set = models.EmptyIndicatorSet(symbol, period, len(bars))
		}
	}()

	closes := models.Closes(bars)
	returns := features.ComputeLogReturns(bars)
	price := closes[len(closes)-1]

	trend := e.trend(bars, closes, price)
	momentum := e.momentum(bars, closes)
	volatility := e.volatility(bars, closes, returns, price)
	volume := e.volume(bars, closes, price)

	weights := WeightsFor(volatility.Regime)
	raw := weights.Trend*trend.Score +
		weights.Momentum*momentum.Score +
		weights.Volatility*volatility.Score +
		weights.Volume*volume.Score

	support, resistance := SwingLevels(bars, 2, 3, price)

	status := models.StatusOK
	if len(bars) < 200 && len(bars) < period {
		status = models.StatusDegraded
	}

	return models.IndicatorSet{
		Symbol:       symbol,
		Period:       period,
		Bars:         len(bars),
		CurrentPrice: price,
		Trend:        trend,
		Momentum:     momentum,
		Volatility:   volatility,
		Volume:       volume,
		Composite: models.Composite{
			Score:      clamp(math.Tanh(raw), -1, 1),
			Confidence: confidence(bars),
			Weights:    weights,
		},
		Levels: models.KeyLevels{
			Support:    support,
			Resistance: resistance,
			POC:        volume.POC,
			VWAP:       volume.VWAP,
		},
		Status:     status,
		ComputedAt: e.now(),
	}
}

// confidence averages data quantity (full at 200 bars) and volume consistency.
func confidence(bars []models.Bar) float64 {
	quantity := math.Min(float64(len(bars))/200, 1)
	consistency := 1 - math.Min(features.CoefficientOfVariation(models.Volumes(bars)), 1)
	return clamp((quantity+consistency)/2, 0, 1)
}

func (e *Engine) trend(bars []models.Bar, closes []float64, price float64) models.TrendIndicators {
	t := models.TrendIndicators{
		EMA20:  EMA(closes, 20),
		EMA50:  EMA(closes, 50),
		EMA200: EMA(closes, 200),
		SMA20:  SMA(closes, 20),
		SMA50:  SMA(closes, 50),
		SMA200: SMA(closes, 200),
		MACD:   ComputeMACD(closes, 12, 26),
	}
	t.ADX, t.PlusDI, t.MinusDI = ADX(bars, 14)
	t.Stability = features.TrendStability(closes)

	// Deviation from EMA20, blended with the EMA20/EMA50 spread.
	deviation, spread := 0.0, 0.0
	if t.EMA20 != 0 {
		deviation = math.Tanh(10 * (price - t.EMA20) / t.EMA20)
	}
	if t.EMA50 != 0 {
		spread = math.Tanh(20 * (t.EMA20 - t.EMA50) / t.EMA50)
	}
	t.Strength = clamp(0.5*deviation+0.5*spread, -1, 1)

	switch {
	case price > t.EMA20 && t.EMA20 > t.EMA50:
		t.Direction = models.DirectionBullish
	case price < t.EMA20 && t.EMA20 < t.EMA50:
		t.Direction = models.DirectionBearish
	default:
		t.Direction = models.DirectionNeutral
	}

	alignment := emaAlignment(price, t.EMA20, t.EMA50, t.EMA200, len(closes) >= 200)

	macd := 0.0
	if price != 0 {
		macd = math.Tanh(50 * t.MACD.Line / price)
	}

	adxDir := 0.0
	if t.PlusDI+t.MinusDI > 0 {
		adxDir = (t.PlusDI - t.MinusDI) / (t.PlusDI + t.MinusDI) * math.Min(t.ADX/50, 1)
	}

	t.Score = clamp(0.35*t.Strength+0.25*alignment+0.20*macd+0.20*adxDir, -1, 1)
	return t
}

// emaAlignment scores how many adjacent pairs of price > EMA20 > EMA50 > EMA200
// are ordered, in [-1,1].
func emaAlignment(price, ema20, ema50, ema200 float64, useLong bool) float64 {
	chain := []float64{price, ema20, ema50}
	if useLong {
		chain = append(chain, ema200)
	}
	score := 0.0
	for i := 1; i < len(chain); i++ {
		switch {
		case chain[i-1] > chain[i]:
			score++
		case chain[i-1] < chain[i]:
			score--
		}
	}
	return score / float64(len(chain)-1)
}

func (e *Engine) momentum(bars []models.Bar, closes []float64) models.MomentumIndicators {
	m := models.MomentumIndicators{
		RSI:       RSI(closes, 14),
		WilliamsR: WilliamsR(bars, 14),
		CCI:       CCI(bars, 20),
	}
	m.StochK, m.StochD = Stochastic(bars, 14, 3)
	m.Momentum, m.ROC = Momentum(closes, 10)

	score := 0.30*(m.RSI-50)/50 +
		0.20*(m.StochK-50)/50 +
		0.15*(m.WilliamsR+50)/50 +
		0.20*math.Tanh(m.ROC/10) +
		0.15*math.Tanh(m.CCI/150)
	m.Score = clamp(score, -1, 1)
	return m
}

func (e *Engine) volatility(bars []models.Bar, closes, returns []float64, price float64) models.VolatilityIndicators {
	bb := Bollinger(closes, 20, 2)
	v := models.VolatilityIndicators{
		ATR:                  ATR(bars, 14),
		BollingerUpper:       bb.Upper,
		BollingerMiddle:      bb.Middle,
		BollingerLower:       bb.Lower,
		BollingerBandwidth:   bb.Bandwidth,
		BollingerPercentB:    bb.PercentB,
		HistoricalVolatility: features.HistoricalVolatility(returns, e.barsPerYear),
		Clustering:           features.VolatilityClustering(returns),
	}
	if price != 0 {
		v.ATRPercent = v.ATR / price
	}

	realized := features.RealizedVolatility(returns, 20, e.barsPerYear)
	v.Regime = ClassifyVolatility(realized)

	short := features.RealizedVolatility(returns, 10, e.barsPerYear)
	long := features.RealizedVolatility(returns, 30, e.barsPerYear)
	v.VolatilityRatio = 1
	if long > 0 {
		v.VolatilityRatio = short / long
	}

	regime := 0.0
	switch v.Regime {
	case models.VolatilityLow:
		regime = 0.5
	case models.VolatilityHigh:
		regime = -0.5
	}
	position := clamp(2*(bb.PercentB-0.5), -1, 1)
	contraction := -math.Tanh(2 * (v.VolatilityRatio - 1))

	v.Score = clamp(0.5*position+0.3*contraction+0.2*regime, -1, 1)
	return v
}

// ClassifyVolatility buckets annualized realized volatility.
func ClassifyVolatility(annualized float64) models.VolatilityRegime {
	switch {
	case annualized < lowVolatilityCeiling:
		return models.VolatilityLow
	case annualized < mediumVolatilityCeiling:
		return models.VolatilityMedium
	default:
		return models.VolatilityHigh
	}
}

func (e *Engine) volume(bars []models.Bar, closes []float64, price float64) models.VolumeIndicators {
	vols := models.Volumes(bars)
	v := models.VolumeIndicators{
		SMA20: SMA(vols, 20),
		VWAP:  VWAP(bars),
		Ratio: 1,
	}
	if v.SMA20 > 0 {
		v.Ratio = last(vols) / v.SMA20
	}
	v.OBV, v.OBVTrend = OBV(bars, 20)

	profile := VolumeProfile(bars, 24, 0.70)
	v.POC, v.ValueAreaHigh, v.ValueAreaLow = profile.POC, profile.ValueAreaHigh, profile.ValueAreaLow

	// Volume above average confirms the direction of the last move.
	direction := 0.0
	if n := len(closes); n >= 2 {
		switch {
		case closes[n-1] > closes[n-2]:
			direction = 1
		case closes[n-1] < closes[n-2]:
			direction = -1
		}
	}
	confirm := math.Tanh(v.Ratio-1) * direction

	vwap := 0.0
	if v.VWAP != 0 {
		vwap = math.Tanh(20 * (price - v.VWAP) / v.VWAP)
	}

	v.Score = clamp(0.3*confirm+0.4*v.OBVTrend+0.3*vwap, -1, 1)
	return v
}
