package recommendation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/services/reasoner"
)

// ErrNoJSON is returned when the reasoner answer contains no JSON object.
var ErrNoJSON = errors.New("response contains no JSON object")

var requiredKeys = []string{
	"final_score",
	"recommendation",
	"confidence",
	"time_horizon",
	"risk_level",
	"position_size_recommendation",
	"explainability_text",
}

var validate = validator.New()

// Parse extracts the JSON document from a raw answer and checks that every
// required key is present. Missing keys cannot be corrected.
func Parse(raw string) (models.ReasonerOutput, []string, error) {
	var out models.ReasonerOutput

	doc := reasoner.ExtractJSON(raw)
	if doc == "" {
		return out, nil, ErrNoJSON
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &keys); err != nil {
		return out, nil, fmt.Errorf("decode response: %w", err)
	}
	var missing []string
	for _, k := range requiredKeys {
		if v, ok := keys[k]; !ok || string(v) == "null" {
			missing = append(missing, k+": missing")
		}
	}
	if len(missing) > 0 {
		return out, missing, nil
	}

	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return out, nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil, nil
}

// SchemaErrors checks ranges and enums.
func SchemaErrors(out models.ReasonerOutput) []string {
	err := validate.Struct(out)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	errs := make([]string, 0, len(ve))
	for _, fe := range ve {
		errs = append(errs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	return errs
}

// BusinessErrors checks the output against the fusion result it was derived from.
func BusinessErrors(out models.ReasonerOutput, price float64) []string {
	var errs []string

	if out.FinalScore > 0.3 && out.Recommendation.IsSell() {
		errs = append(errs, fmt.Sprintf("recommendation: %s contradicts final_score %.2f", out.Recommendation, out.FinalScore))
	}
	if out.FinalScore < -0.3 && out.Recommendation.IsBuy() {
		errs = append(errs, fmt.Sprintf("recommendation: %s contradicts final_score %.2f", out.Recommendation, out.FinalScore))
	}

	if out.RiskLevel == models.RiskHigh && out.PositionSizeRecommendation > 15 {
		errs = append(errs, fmt.Sprintf("position_size_recommendation: %.1f exceeds 15 under HIGH risk", out.PositionSizeRecommendation))
	}

	if price > 0 && !out.PriceTargets.IsZero() {
		errs = append(errs, targetErrors(out.Recommendation, out.PriceTargets, price)...)
	}
	return errs
}

func targetErrors(action models.Action, t models.PriceTargets, price float64) []string {
	var errs []string
	targets := map[string]float64{"conservative": t.Conservative, "moderate": t.Moderate, "aggressive": t.Aggressive}
	for _, name := range []string{"conservative", "moderate", "aggressive"} {
		v := targets[name]
		if v == 0 {
			continue
		}
		if action.IsBuy() && v <= price {
			errs = append(errs, fmt.Sprintf("price_targets.%s: %.2f not above price %.2f for %s", name, v, price, action))
		}
		if action.IsSell() && v >= price {
			errs = append(errs, fmt.Sprintf("price_targets.%s: %.2f not below price %.2f for %s", name, v, price, action))
		}
	}
	if t.StopLoss > 0 {
		if action.IsBuy() && t.StopLoss >= price {
			errs = append(errs, fmt.Sprintf("price_targets.stop_loss: %.2f not below price %.2f", t.StopLoss, price))
		}
		if action.IsSell() && t.StopLoss <= price {
			errs = append(errs, fmt.Sprintf("price_targets.stop_loss: %.2f not above price %.2f", t.StopLoss, price))
		}
	}
	return errs
}

// Correct clamps numerics into range and replaces invalid enums with values
// derived from the score and the fusion result.
func Correct(out models.ReasonerOutput, f models.FusionResult) models.ReasonerOutput {
	out.FinalScore = clamp(out.FinalScore, -1, 1)
	out.Confidence = clamp(out.Confidence, 0, 1)
	out.PositionSizeRecommendation = clamp(out.PositionSizeRecommendation, 1, 25)

	if !validAction(out.Recommendation) {
		out.Recommendation = ActionForScore(out.FinalScore)
	}
	if !validRisk(out.RiskLevel) {
		out.RiskLevel = f.RiskAssessment.Level
		if !validRisk(out.RiskLevel) {
			out.RiskLevel = models.RiskMedium
		}
	}
	if !validHorizon(out.TimeHorizon) {
		out.TimeHorizon = f.TimeHorizon.Horizon
		if !validHorizon(out.TimeHorizon) {
			out.TimeHorizon = models.HorizonMedium
		}
	}
	if out.RiskLevel == models.RiskHigh && out.PositionSizeRecommendation > 15 {
		out.PositionSizeRecommendation = 15
	}

	t := &out.PriceTargets
	for _, v := range []*float64{&t.Conservative, &t.Moderate, &t.Aggressive, &t.StopLoss} {
		if *v < 0 || math.IsNaN(*v) {
			*v = 0
		}
	}

	if strings.TrimSpace(out.ExplainabilityText) == "" {
		out.ExplainabilityText = f.Recommendation.Rationale
	}
	return out
}

// ActionForScore maps a score onto the fixed five-tier ladder.
func ActionForScore(score float64) models.Action {
	switch {
	case score >= 0.6:
		return models.ActionStrongBuy
	case score >= 0.2:
		return models.ActionBuy
	case score <= -0.6:
		return models.ActionStrongSell
	case score <= -0.2:
		return models.ActionSell
	default:
		return models.ActionHold
	}
}

func validAction(a models.Action) bool {
	switch a {
	case models.ActionStrongBuy, models.ActionBuy, models.ActionHold, models.ActionSell, models.ActionStrongSell:
		return true
	}
	return false
}

func validRisk(r models.RiskLevel) bool {
	return r == models.RiskLow || r == models.RiskMedium || r == models.RiskHigh
}

func validHorizon(h models.Horizon) bool {
	return h == models.HorizonShort || h == models.HorizonMedium || h == models.HorizonLong
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
