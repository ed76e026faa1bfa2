package recommendation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"FinFusion/internal/domain/models"
)

// FallbackConfidence marks a rule-based result.
const FallbackConfidence = 0.5

var fallbackSize = map[models.RiskLevel]float64{
	models.RiskLow:    8,
	models.RiskMedium: 5,
	models.RiskHigh:   3,
}

// Fallback builds a deterministic recommendation from the fusion result alone.
// It always passes SchemaErrors and BusinessErrors.
func Fallback(f models.FusionResult) models.ReasonerOutput {
	score := clamp(f.FusionScore, -1, 1)

	action := models.ActionHold
	switch {
	case score > 0.2:
		action = models.ActionBuy
	case score < -0.2:
		action = models.ActionSell
	}

	risk := riskFromVolatility(f.VolatilityRegime)
	horizon := f.TimeHorizon.Horizon
	if !validHorizon(horizon) {
		horizon = models.HorizonMedium
	}

	drivers := make([]string, 0, len(f.TopDrivers))
	for _, d := range f.TopDrivers {
		drivers = append(drivers, fmt.Sprintf("%s (%+.3f)", d.Name, d.Impact))
	}
	var evidence []string
	if f.Sentiment != nil {
		for _, e := range f.Sentiment.Evidence {
			evidence = append(evidence, e.Text)
		}
	}
	catalysts := make([]string, 0, len(f.Catalysts))
	for _, c := range f.Catalysts {
		catalysts = append(catalysts, c.Description)
	}
	notes := append([]string{"rule-based fallback: external reasoning unavailable, treat as low confidence"},
		f.RiskAssessment.Mitigations...)

	return models.ReasonerOutput{
		FinalScore:                 score,
		Recommendation:             action,
		Confidence:                 FallbackConfidence,
		TimeHorizon:                horizon,
		RiskLevel:                  risk,
		PositionSizeRecommendation: fallbackSize[risk],
		PriceTargets:               FallbackTargets(action, score, f.CurrentPrice),
		TopDrivers:                 drivers,
		EvidenceSentences:          evidence,
		ExplainabilityText: fmt.Sprintf("%s from a fusion score of %.3f (quant %.3f, sentiment %.3f, alpha %.1f) in a %s volatility regime.",
			action, score, f.QuantScore, f.SentimentScore, f.Alpha, f.VolatilityRegime),
		RiskNotes:          notes,
		Catalysts:          catalysts,
		TechnicalSummary:   technicalSummary(f),
		FundamentalSummary: fundamentalSummary(f),
		SentimentSummary:   sentimentSummary(f),
	}
}

// FallbackTargets places targets at 5/10/15% from price with a 5% stop on the
// other side. HOLD follows the sign of the score.
func FallbackTargets(action models.Action, score, price float64) models.PriceTargets {
	if price <= 0 {
		return models.PriceTargets{}
	}
	p := decimal.NewFromFloat(price)
	pct := func(n int64) decimal.Decimal { return decimal.New(n, -2) }
	one := decimal.NewFromInt(1)

	long := action.IsBuy() || (action == models.ActionHold && score >= 0)
	at := func(n int64, up bool) float64 {
		m := one.Sub(pct(n))
		if up {
			m = one.Add(pct(n))
		}
		return p.Mul(m).Round(2).InexactFloat64()
	}
	return models.PriceTargets{
		Conservative: at(5, long),
		Moderate:     at(10, long),
		Aggressive:   at(15, long),
		StopLoss:     at(5, !long),
	}
}

func riskFromVolatility(v models.VolatilityRegime) models.RiskLevel {
	switch v {
	case models.VolatilityHigh:
		return models.RiskHigh
	case models.VolatilityLow:
		return models.RiskLow
	default:
		return models.RiskMedium
	}
}

func technicalSummary(f models.FusionResult) string {
	if f.Indicators == nil || f.Indicators.Status == models.StatusUnavailable {
		return "technical data unavailable"
	}
	ind := f.Indicators
	return fmt.Sprintf("%s trend (ADX %.1f), RSI %.1f, MACD %.3f, %s volatility (ATR %.2f%%), volume %.2fx average",
		ind.Trend.Direction, ind.Trend.ADX, ind.Momentum.RSI, ind.Trend.MACD.Line,
		ind.Volatility.Regime, ind.Volatility.ATRPercent, ind.Volume.Ratio)
}

func fundamentalSummary(f models.FusionResult) string {
	if f.Sentiment == nil || f.Sentiment.Analyst.Count == 0 {
		return "no analyst coverage available"
	}
	a := f.Sentiment.Analyst
	s := fmt.Sprintf("%d analyst ratings (%d buy, %d hold, %d sell)", a.Count, a.Buy, a.Hold, a.Sell)
	if a.AveragePriceTarget > 0 {
		s += fmt.Sprintf(", average target %.2f", a.AveragePriceTarget)
	}
	return s
}

func sentimentSummary(f models.FusionResult) string {
	if f.Sentiment == nil || f.Sentiment.Status == models.StatusUnavailable {
		return "sentiment data unavailable"
	}
	s := f.Sentiment
	return fmt.Sprintf("overall %.3f (confidence %.2f) from %d items, trend %s",
		s.OverallScore, s.Confidence, s.Sources.Total(), s.Trend.Direction)
}
