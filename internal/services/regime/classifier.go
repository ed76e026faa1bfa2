package regime

import (
	"fmt"
	"math"

	"FinFusion/internal/domain/models"
	dsvc "FinFusion/internal/domain/service"
	"FinFusion/pkg/logger"
)

// Contribution weights shared by every candidate label.
const (
	weightTrend     = 0.40
	weightMomentum  = 0.30
	weightSentiment = 0.20
	weightADX       = 0.10

	// neutral band for the sentiment sign
	sentimentBand = 0.1
	adxCeiling    = 50.0
	gapCeiling    = 0.5
)

// RSI zones used by both the momentum contribution and the phase table.
type rsiZone int

const (
	zoneOversold rsiZone = iota
	zoneBearish
	zoneNeutral
	zoneBullish
	zoneOverbought
)

func zoneOf(rsi float64) rsiZone {
	switch {
	case rsi < 30:
		return zoneOversold
	case rsi < 45:
		return zoneBearish
	case rsi <= 55:
		return zoneNeutral
	case rsi <= 70:
		return zoneBullish
	default:
		return zoneOverbought
	}
}

func (z rsiZone) String() string {
	return [...]string{"oversold", "bearish", "neutral", "bullish", "overbought"}[z]
}

// Classifier labels the market state from an IndicatorSet and a SentimentSnapshot.
type Classifier struct {
	log   *logger.Logger
	score func(models.IndicatorSet, models.SentimentSnapshot) models.RegimeScores
}

var _ dsvc.RegimeClassifier = (*Classifier)(nil)

func NewClassifier(log *logger.Logger) *Classifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Classifier{log: log, score: Score}
}

// Classify never fails: a panic during classification yields the neutral
// low-confidence fallback regime.
func (c *Classifier) Classify(ind models.IndicatorSet, sent models.SentimentSnapshot) (out models.Regime) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("regime classification panicked", logger.Symbol(ind.Symbol), logger.Error(fmt.Errorf("%v", r)))
			out = models.FallbackRegime(ind.Symbol)
		}
	}()

	zone := zoneOf(ind.Momentum.RSI)
	scores := c.score(ind, sent)
	label, strength, runnerUp := pick(scores)

	out = models.Regime{
		Symbol:          ind.Symbol,
		Label:           label,
		Strength:        strength,
		Phase:           Phase(label, ind.Momentum.RSI, sent.Trend.Direction),
		Characteristics: characteristics(ind, sent, zone),
		Confidence:      confidence(ind, sent, strength-runnerUp),
		Scores:          scores,
		Status:          models.StatusOK,
	}
	if ind.Status == models.StatusUnavailable || sent.Status == models.StatusUnavailable {
		out.Status = models.StatusDegraded
	}
	return out
}

// Score computes the three candidate scores, each in [0,1].
func Score(ind models.IndicatorSet, sent models.SentimentSnapshot) models.RegimeScores {
	dir := ind.Trend.Direction
	zone := zoneOf(ind.Momentum.RSI)
	adx := math.Min(math.Max(ind.Trend.ADX, 0)/adxCeiling, 1)
	s := sent.OverallScore

	var bull, bear, neutral float64

	bull += weightTrend * directionMatch(dir, models.DirectionBullish)
	bear += weightTrend * directionMatch(dir, models.DirectionBearish)
	neutral += weightTrend * directionMatch(dir, models.DirectionNeutral)

	switch zone {
	case zoneBullish:
		bull += weightMomentum
		neutral += weightMomentum * 0.5
	case zoneOverbought:
		bull += weightMomentum * 0.7
	case zoneNeutral:
		bull += weightMomentum * 0.3
		bear += weightMomentum * 0.3
		neutral += weightMomentum
	case zoneBearish:
		bear += weightMomentum
		neutral += weightMomentum * 0.5
	case zoneOversold:
		bear += weightMomentum * 0.7
	}

	switch {
	case s > sentimentBand:
		bull += weightSentiment
		neutral += weightSentiment * 0.3
	case s < -sentimentBand:
		bear += weightSentiment
		neutral += weightSentiment * 0.3
	default:
		bull += weightSentiment * 0.3
		bear += weightSentiment * 0.3
		neutral += weightSentiment
	}

	// ADX rewards the trending label in its direction and the neutral label when weak.
	switch dir {
	case models.DirectionBullish:
		bull += weightADX * adx
	case models.DirectionBearish:
		bear += weightADX * adx
	}
	switch {
	case ind.Trend.ADX < 20:
		neutral += weightADX
	case ind.Trend.ADX < 25:
		neutral += weightADX * 0.5
	}

	return models.RegimeScores{Bull: round4(bull), Bear: round4(bear), Neutral: round4(neutral)}
}

func directionMatch(got, want models.Direction) float64 {
	switch {
	case got == want:
		return 1
	case got == models.DirectionNeutral || want == models.DirectionNeutral:
		return 0.3
	default:
		return 0
	}
}

// pick returns the winning label, its score and the runner-up score. Ties
// resolve neutral first, then bull, then bear.
func pick(s models.RegimeScores) (models.RegimeLabel, float64, float64) {
	type cand struct {
		label models.RegimeLabel
		score float64
	}
	cands := []cand{
		{models.RegimeNeutral, s.Neutral},
		{models.RegimeBull, s.Bull},
		{models.RegimeBear, s.Bear},
	}
	best := 0
	for i := 1; i < len(cands); i++ {
		if cands[i].score > cands[best].score {
			best = i
		}
	}
	runnerUp := math.Inf(-1)
	for i, c := range cands {
		if i != best && c.score > runnerUp {
			runnerUp = c.score
		}
	}
	return cands[best].label, cands[best].score, runnerUp
}

// Phase is the sub-classification table keyed on label, RSI zone and
// sentiment trend.
func Phase(label models.RegimeLabel, rsi float64, trend models.SentimentDirection) models.RegimePhase {
	zone := zoneOf(rsi)
	switch label {
	case models.RegimeBull:
		switch {
		case zone == zoneOverbought && trend == models.SentimentDeclining:
			return models.PhaseDistribution
		case zone <= zoneBearish:
			return models.PhaseAccumulation
		default:
			return models.PhaseMarkup
		}
	case models.RegimeBear:
		switch {
		case zone == zoneOversold && trend == models.SentimentImproving:
			return models.PhaseAccumulation
		case zone >= zoneBullish:
			return models.PhaseDistribution
		default:
			return models.PhaseMarkdown
		}
	default:
		switch {
		case trend == models.SentimentImproving && zone <= zoneNeutral:
			return models.PhaseAccumulation
		case trend == models.SentimentDeclining && zone >= zoneNeutral:
			return models.PhaseDistribution
		case zone == zoneNeutral:
			return models.PhaseConsolidation
		default:
			return models.PhaseRanging
		}
	}
}

func confidence(ind models.IndicatorSet, sent models.SentimentSnapshot, gap float64) float64 {
	adx := math.Min(math.Max(ind.Trend.ADX, 0)/adxCeiling, 1)
	sep := math.Min(math.Max(gap, 0)/gapCeiling, 1)

	vol := 0.7
	switch ind.Volatility.Regime {
	case models.VolatilityLow:
		vol = 1
	case models.VolatilityHigh:
		vol = 0.4
	}

	sc := math.Max(0, math.Min(1, sent.Confidence))
	c := 0.3*adx + 0.3*sep + 0.2*vol + 0.2*sc
	return round4(math.Max(0, math.Min(1, c)))
}

func characteristics(ind models.IndicatorSet, sent models.SentimentSnapshot, zone rsiZone) []string {
	out := make([]string, 0, 5)

	switch adx := ind.Trend.ADX; {
	case adx >= 25:
		out = append(out, fmt.Sprintf("strong %s trend (ADX %.1f)", ind.Trend.Direction, adx))
	case adx < 20:
		out = append(out, fmt.Sprintf("weak trend (ADX %.1f)", adx))
	default:
		out = append(out, fmt.Sprintf("developing trend (ADX %.1f)", adx))
	}

	out = append(out, fmt.Sprintf("%s momentum (RSI %.1f)", zone, ind.Momentum.RSI))
	out = append(out, fmt.Sprintf("%s volatility", ind.Volatility.Regime))

	switch {
	case sent.OverallScore > sentimentBand:
		out = append(out, "positive sentiment")
	case sent.OverallScore < -sentimentBand:
		out = append(out, "negative sentiment")
	default:
		out = append(out, "mixed sentiment")
	}
	if sent.Trend.Direction != "" && sent.Trend.Direction != models.SentimentStable {
		out = append(out, string(sent.Trend.Direction)+" sentiment trend")
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
