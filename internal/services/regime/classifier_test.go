package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/models"
)

func indicators(dir models.Direction, rsi, adx float64, vol models.VolatilityRegime) models.IndicatorSet {
	set := models.EmptyIndicatorSet("TEST", 250, 250)
	set.Status = models.StatusOK
	set.Trend.Direction = dir
	set.Trend.ADX = adx
	set.Momentum.RSI = rsi
	set.Volatility.Regime = vol
	return set
}

func snapshot(score, conf float64, trend models.SentimentDirection) models.SentimentSnapshot {
	s := models.EmptySentimentSnapshot("TEST")
	s.Status = models.StatusOK
	s.OverallScore = score
	s.Confidence = conf
	s.Trend.Direction = trend
	return s
}

func TestClassify_Bull(t *testing.T) {
	c := NewClassifier(nil)
	r := c.Classify(
		indicators(models.DirectionBullish, 62, 40, models.VolatilityLow),
		snapshot(0.5, 0.8, models.SentimentStable),
	)

	assert.Equal(t, models.RegimeBull, r.Label)
	assert.InDelta(t, 0.98, r.Strength, 1e-9)
	assert.InDelta(t, 0.0, r.Scores.Bear, 1e-9)
	assert.InDelta(t, 0.33, r.Scores.Neutral, 1e-9)
	assert.Equal(t, models.PhaseMarkup, r.Phase)
	// 0.3*0.8 + 0.3*1 + 0.2*1 + 0.2*0.8
	assert.InDelta(t, 0.9, r.Confidence, 1e-9)
	assert.Equal(t, models.StatusOK, r.Status)
	assert.Contains(t, r.Characteristics, "positive sentiment")
}

func TestClassify_BearAndOversoldAccumulation(t *testing.T) {
	c := NewClassifier(nil)

	r := c.Classify(
		indicators(models.DirectionBearish, 38, 40, models.VolatilityMedium),
		snapshot(-0.5, 0.8, models.SentimentStable),
	)
	assert.Equal(t, models.RegimeBear, r.Label)
	assert.InDelta(t, 0.98, r.Strength, 1e-9)
	assert.Equal(t, models.PhaseMarkdown, r.Phase)

	r = c.Classify(
		indicators(models.DirectionBearish, 25, 40, models.VolatilityHigh),
		snapshot(-0.5, 0.8, models.SentimentImproving),
	)
	assert.Equal(t, models.RegimeBear, r.Label)
	assert.InDelta(t, 0.89, r.Strength, 1e-9)
	assert.Equal(t, models.PhaseAccumulation, r.Phase)
	assert.Contains(t, r.Characteristics, "improving sentiment trend")
}

func TestClassify_NeutralConsolidation(t *testing.T) {
	c := NewClassifier(nil)
	r := c.Classify(
		indicators(models.DirectionNeutral, 50, 15, models.VolatilityMedium),
		snapshot(0, 0.5, models.SentimentStable),
	)

	assert.Equal(t, models.RegimeNeutral, r.Label)
	assert.InDelta(t, 1.0, r.Strength, 1e-9)
	assert.InDelta(t, 0.27, r.Scores.Bull, 1e-9)
	assert.InDelta(t, 0.27, r.Scores.Bear, 1e-9)
	assert.Equal(t, models.PhaseConsolidation, r.Phase)
}

func TestClassify_EmptyInputsAreDegraded(t *testing.T) {
	c := NewClassifier(nil)
	r := c.Classify(models.EmptyIndicatorSet("X", 250, 10), models.EmptySentimentSnapshot("X"))

	assert.Equal(t, models.RegimeNeutral, r.Label)
	assert.Equal(t, models.StatusDegraded, r.Status)
	assert.GreaterOrEqual(t, r.Confidence, 0.0)
	assert.LessOrEqual(t, r.Confidence, 1.0)
	require.NotEmpty(t, r.Characteristics)
	assert.Equal(t, "weak trend (ADX 0.0)", r.Characteristics[0])
}

func TestPick_TieBreak(t *testing.T) {
	label, score, runner := pick(models.RegimeScores{Bull: 0.5, Bear: 0.5, Neutral: 0.5})
	assert.Equal(t, models.RegimeNeutral, label)
	assert.Equal(t, 0.5, score)
	assert.Equal(t, 0.5, runner)

	label, _, _ = pick(models.RegimeScores{Bull: 0.5, Bear: 0.5, Neutral: 0.2})
	assert.Equal(t, models.RegimeBull, label)
}

func TestPhaseTable(t *testing.T) {
	tests := []struct {
		label models.RegimeLabel
		rsi   float64
		trend models.SentimentDirection
		want  models.RegimePhase
	}{
		{models.RegimeBull, 75, models.SentimentDeclining, models.PhaseDistribution},
		{models.RegimeBull, 75, models.SentimentStable, models.PhaseMarkup},
		{models.RegimeBull, 40, models.SentimentStable, models.PhaseAccumulation},
		{models.RegimeBear, 60, models.SentimentStable, models.PhaseDistribution},
		{models.RegimeBear, 40, models.SentimentDeclining, models.PhaseMarkdown},
		{models.RegimeNeutral, 40, models.SentimentImproving, models.PhaseAccumulation},
		{models.RegimeNeutral, 60, models.SentimentDeclining, models.PhaseDistribution},
		{models.RegimeNeutral, 65, models.SentimentStable, models.PhaseRanging},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Phase(tt.label, tt.rsi, tt.trend), "%s rsi=%v %s", tt.label, tt.rsi, tt.trend)
	}
}

func TestFallbackRegime(t *testing.T) {
	r := models.FallbackRegime("X")
	assert.Equal(t, models.RegimeNeutral, r.Label)
	assert.Equal(t, 0.3, r.Confidence)
}

func TestClassify_PanicYieldsFallbackRegime(t *testing.T) {
	c := NewClassifier(nil)
	c.score = func(models.IndicatorSet, models.SentimentSnapshot) models.RegimeScores {
		panic("scores unavailable")
	}

	ind := indicators(models.DirectionBullish, 60, 30, models.VolatilityLow)
	ind.Symbol = "AAPL"
	var r models.Regime
	require.NotPanics(t, func() { r = c.Classify(ind, snapshot(0.5, 0.8, models.SentimentImproving)) })

	assert.Equal(t, models.FallbackRegime("AAPL"), r)
}
