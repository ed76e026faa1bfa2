package recommendation

import (
	"fmt"
	"strings"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/services/fusion"
)

// SystemPrompt fixes the reasoner role and the exact JSON document it must return.
const SystemPrompt = `You are a senior equity analyst. You receive a fused quantitative and sentiment analysis for one stock and turn it into a final investment recommendation.

Your response must be a single valid JSON object with the following structure:
{
  "final_score": -1.0 to 1.0,
  "recommendation": "STRONG_BUY" | "BUY" | "HOLD" | "SELL" | "STRONG_SELL",
  "confidence": 0.0-1.0,
  "time_horizon": "short_term" | "medium_term" | "long_term",
  "risk_level": "LOW" | "MEDIUM" | "HIGH",
  "position_size_recommendation": 1-25 (percent of portfolio),
  "price_targets": {"conservative": number, "moderate": number, "aggressive": number, "stop_loss": number},
  "top_drivers": [strings],
  "evidence_sentences": [strings],
  "explainability_text": "plain-language explanation",
  "risk_notes": [strings],
  "catalysts": [strings],
  "technical_summary": "string",
  "fundamental_summary": "string",
  "sentiment_summary": "string"
}

Rules:
- Never recommend SELL when final_score > 0.3 and never BUY when final_score < -0.3.
- For buys every price target is above the current price and the stop loss below it; for sells the reverse.
- position_size_recommendation must not exceed 15 when risk_level is HIGH.
Return JSON only, without markdown.`

// BuildUserPrompt renders the fusion result and regime as the reasoner input.
func BuildUserPrompt(f models.FusionResult, regime models.Regime) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Symbol: %s\n", f.Symbol)
	fmt.Fprintf(&b, "Current price: %.2f\n\n", f.CurrentPrice)

	b.WriteString("=== FUSION ===\n")
	fmt.Fprintf(&b, "%s\n", fusion.Summary(f))
	fmt.Fprintf(&b, "Fusion score: %.4f (confidence %.2f, alpha %.1f quant / %.1f sentiment)\n",
		f.FusionScore, f.Confidence, f.Alpha, 1-f.Alpha)
	fmt.Fprintf(&b, "Quant score: %.4f (confidence %.2f)\n", f.QuantScore, f.QuantConfidence)
	fmt.Fprintf(&b, "Sentiment score: %.4f (confidence %.2f)\n", f.SentimentScore, f.SentimentConfidence)
	fmt.Fprintf(&b, "Engine recommendation: %s (%s)\n", f.Recommendation.Action, f.Recommendation.Rationale)
	fmt.Fprintf(&b, "Data quality: %.2f, consistency: %.2f, volatility regime: %s\n\n",
		f.DataQuality, f.Consistency, f.VolatilityRegime)

	if len(f.TopDrivers) > 0 {
		b.WriteString("=== TOP DRIVERS ===\n")
		for _, d := range f.TopDrivers {
			fmt.Fprintf(&b, "- %s (%s): value %.3f, impact %+.4f\n", d.Name, d.Source, d.Value, d.Impact)
		}
		b.WriteString("\n")
	}

	r := f.RiskAssessment
	b.WriteString("=== RISK ===\n")
	fmt.Fprintf(&b, "Level: %s (score %.2f)\n", r.Level, r.Score)
	fmt.Fprintf(&b, "Factors: volatility %.2f, trend weakness %.2f, sentiment divergence %.2f, data quality %.2f, volume anomaly %.2f\n",
		r.Factors.Volatility, r.Factors.TrendWeakness, r.Factors.SentimentDivergence, r.Factors.DataQuality, r.Factors.VolumeAnomaly)
	fmt.Fprintf(&b, "Suggested position size: %.2f%%\n", f.PositionSizing.RecommendedSizePercent)
	fmt.Fprintf(&b, "Time horizon: %s (%s)\n\n", f.TimeHorizon.Horizon, f.TimeHorizon.Rationale)

	b.WriteString("=== KEY LEVELS ===\n")
	fmt.Fprintf(&b, "Support: %s\n", formatLevels(f.KeyLevels.Support))
	fmt.Fprintf(&b, "Resistance: %s\n", formatLevels(f.KeyLevels.Resistance))
	fmt.Fprintf(&b, "POC: %.2f, VWAP: %.2f\n\n", f.KeyLevels.POC, f.KeyLevels.VWAP)

	b.WriteString("=== REGIME ===\n")
	fmt.Fprintf(&b, "%s market, %s phase (strength %.2f, confidence %.2f)\n",
		regime.Label, regime.Phase, regime.Strength, regime.Confidence)
	if len(regime.Characteristics) > 0 {
		fmt.Fprintf(&b, "Characteristics: %s\n", strings.Join(regime.Characteristics, "; "))
	}

	if len(f.Catalysts) > 0 {
		b.WriteString("\n=== CATALYSTS ===\n")
		for _, c := range f.Catalysts {
			fmt.Fprintf(&b, "- [%s] %s\n", c.Kind, c.Description)
		}
	}

	b.WriteString("\nProvide your final recommendation as JSON.")
	return b.String()
}

func formatLevels(levels []float64) string {
	if len(levels) == 0 {
		return "n/a"
	}
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = fmt.Sprintf("%.2f", l)
	}
	return strings.Join(parts, ", ")
}
