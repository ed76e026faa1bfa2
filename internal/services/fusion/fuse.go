package fusion

import (
	"fmt"
	"math"
	"sort"
	"time"

	"FinFusion/internal/domain/models"
)

const (
	maxDrivers = 5

	baseSizePercent = 10.0
	minSizePercent  = 2.0
	maxSizePercent  = 25.0

	// sentiment item count at which data quality stops improving
	fullSourceCount = 20
)

// Base ladder before volatility and confidence scaling.
var baseThresholds = models.Thresholds{StrongBuy: 0.6, Buy: 0.2, Sell: -0.2, StrongSell: -0.6}

// Alpha is the quant weight for a volatility regime: calm markets trust the
// technical signal, turbulent ones trust sentiment.
func Alpha(r models.VolatilityRegime) float64 {
	switch r {
	case models.VolatilityLow:
		return 0.8
	case models.VolatilityHigh:
		return 0.4
	default:
		return 0.6
	}
}

// Score blends quant and sentiment, each weighted by alpha and by its own
// confidence. It is 0 when neither side carries confidence.
func Score(alpha, quant, quantConf, sent, sentConf float64) float64 {
	den := alpha*quantConf + (1-alpha)*sentConf
	if den <= 0 || math.IsNaN(den) {
		return 0
	}
	return clampUnit((alpha*quant*quantConf + (1-alpha)*sent*sentConf) / den)
}

// ThresholdsFor scales the ladder by volatility (stricter when volatile) and
// pulls it toward zero as average confidence rises.
func ThresholdsFor(r models.VolatilityRegime, avgConfidence float64) models.Thresholds {
	mult := 1.0
	switch r {
	case models.VolatilityHigh:
		mult = 1.2
	case models.VolatilityLow:
		mult = 0.8
	}
	k := mult / (0.5 + 0.5*clamp01(avgConfidence))
	return models.Thresholds{
		StrongBuy:  baseThresholds.StrongBuy * k,
		Buy:        baseThresholds.Buy * k,
		Sell:       baseThresholds.Sell * k,
		StrongSell: baseThresholds.StrongSell * k,
	}
}

// Classify maps a fusion score onto the ladder.
func Classify(score float64, t models.Thresholds) models.Action {
	switch {
	case score >= t.StrongBuy:
		return models.ActionStrongBuy
	case score >= t.Buy:
		return models.ActionBuy
	case score <= t.StrongSell:
		return models.ActionStrongSell
	case score <= t.Sell:
		return models.ActionSell
	default:
		return models.ActionHold
	}
}

// Fuse derives a FusionResult from both engine outputs. It is a pure function
// of its inputs apart from the generation timestamp.
func Fuse(symbol string, ind models.IndicatorSet, sent models.SentimentSnapshot, now time.Time) models.FusionResult {
	if ind.Status == models.StatusUnavailable && sent.Status == models.StatusUnavailable {
		res := models.EmptyFusionResult(symbol)
		res.GeneratedAt = now
		res.Indicators = &ind
		res.Sentiment = &sent
		return res
	}

	regime := ind.Volatility.Regime
	if regime == "" {
		regime = models.VolatilityMedium
	}
	alpha := Alpha(regime)

	q, qc := ind.Composite.Score, clamp01(ind.Composite.Confidence)
	s, sc := sent.OverallScore, clamp01(sent.Confidence)

	score := Score(alpha, q, qc, s, sc)
	thresholds := ThresholdsFor(regime, (qc+sc)/2)
	action := Classify(score, thresholds)

	quality := DataQuality(qc, sent.Sources)
	consistency := Consistency(ind, sent)
	confidence := clamp01((qc + sc + quality + consistency) / 4)

	risk := AssessRisk(ind, sent, quality)

	res := models.FusionResult{
		Symbol:      symbol,
		FusionScore: score,
		Recommendation: models.Recommendation{
			Action:    action,
			Rationale: rationale(score, action, thresholds, alpha, regime),
			Strength:  math.Abs(score),
		},
		Confidence:          confidence,
		Alpha:               alpha,
		QuantScore:          q,
		QuantConfidence:     qc,
		SentimentScore:      s,
		SentimentConfidence: sc,
		DataQuality:         quality,
		Consistency:         consistency,
		VolatilityRegime:    regime,
		Thresholds:          thresholds,
		TopDrivers:          TopDrivers(ind, sent, alpha),
		RiskAssessment:      risk,
		PositionSizing:      SizePosition(score, risk.Level, confidence),
		TimeHorizon:         ChooseHorizon(ind, sent),
		KeyLevels:           ind.Levels,
		Catalysts:           Catalysts(ind, sent),
		CurrentPrice:        ind.CurrentPrice,
		Indicators:          &ind,
		Sentiment:           &sent,
		Status:              models.StatusOK,
		GeneratedAt:         now,
	}
	if res.KeyLevels.Support == nil {
		res.KeyLevels.Support = []float64{}
	}
	if res.KeyLevels.Resistance == nil {
		res.KeyLevels.Resistance = []float64{}
	}
	if ind.Status != models.StatusOK || sent.Status != models.StatusOK {
		res.Status = models.StatusDegraded
	}
	return res
}

func rationale(score float64, action models.Action, t models.Thresholds, alpha float64, regime models.VolatilityRegime) string {
	return fmt.Sprintf("fusion score %.3f against buy/sell thresholds %.3f/%.3f gives %s (alpha %.1f, %s volatility)",
		score, t.Buy, t.Sell, action, alpha, regime)
}

// DataQuality rewards a confident quant series and plenty of sentiment items.
func DataQuality(quantConf float64, counts models.SourceCounts) float64 {
	coverage := math.Min(1, float64(counts.Total())/fullSourceCount)
	return clamp01(0.5*clamp01(quantConf) + 0.5*coverage)
}

// Consistency rewards quant/sentiment agreement and agreement inside each side
// (trend vs momentum, news vs social).
func Consistency(ind models.IndicatorSet, sent models.SentimentSnapshot) float64 {
	cross := agreement(ind.Composite.Score, sent.OverallScore)
	quant := agreement(ind.Trend.Score, ind.Momentum.Score)

	inner := 0.5
	if sent.News.Confidence > 0 && sent.Social.Confidence > 0 {
		inner = agreement(sent.News.Score, sent.Social.Score)
	}
	return clamp01(0.5*cross + 0.25*quant + 0.25*inner)
}

func agreement(a, b float64) float64 {
	return clamp01(1 - math.Abs(a-b)/2)
}

// TopDrivers ranks the named sub-signals by weighted impact. Quant drivers
// carry alpha times their family weight, sentiment drivers carry 1-alpha times
// their source weight.
func TopDrivers(ind models.IndicatorSet, sent models.SentimentSnapshot, alpha float64) []models.Driver {
	w := ind.Composite.Weights
	sw := sent.Weights
	drivers := []models.Driver{
		{Name: "trend", Source: models.DriverQuant, Value: ind.Trend.Score, Impact: alpha * w.Trend * ind.Trend.Score},
		{Name: "momentum", Source: models.DriverQuant, Value: ind.Momentum.Score, Impact: alpha * w.Momentum * ind.Momentum.Score},
		{Name: "volatility", Source: models.DriverQuant, Value: ind.Volatility.Score, Impact: alpha * w.Volatility * ind.Volatility.Score},
		{Name: "volume", Source: models.DriverQuant, Value: ind.Volume.Score, Impact: alpha * w.Volume * ind.Volume.Score},
		{Name: "news_sentiment", Source: models.DriverSentiment, Value: sent.News.Score, Impact: (1 - alpha) * sw.News * sent.News.Score},
		{Name: "social_sentiment", Source: models.DriverSentiment, Value: sent.Social.Score, Impact: (1 - alpha) * sw.Social * sent.Social.Score},
		{Name: "analyst_sentiment", Source: models.DriverSentiment, Value: sent.Analyst.Score, Impact: (1 - alpha) * sw.Analyst * sent.Analyst.Score},
	}
	sort.SliceStable(drivers, func(i, j int) bool {
		return math.Abs(drivers[i].Impact) > math.Abs(drivers[j].Impact)
	})
	return drivers[:maxDrivers]
}

var mitigations = map[string]string{
	"volatility":           "reduce position size and widen stops while volatility is elevated",
	"trend_weakness":       "wait for trend confirmation before adding exposure",
	"sentiment_divergence": "quant and sentiment disagree; scale in gradually",
	"data_quality":         "limited data behind this signal; treat it as low conviction",
	"volume_anomaly":       "unusual volume; confirm the move with price action",
}

// AssessRisk scores five independent factors in [0,1] and buckets their mean
// at 0.4 and 0.7.
func AssessRisk(ind models.IndicatorSet, sent models.SentimentSnapshot, dataQuality float64) models.RiskAssessment {
	f := models.RiskFactors{
		Volatility:          volatilityRisk(ind.Volatility.Regime),
		TrendWeakness:       clamp01(1 - ind.Trend.ADX/50),
		SentimentDivergence: clamp01(math.Abs(ind.Composite.Score-sent.OverallScore) / 2),
		DataQuality:         clamp01(1 - dataQuality),
		VolumeAnomaly:       clamp01(math.Abs(ind.Volume.Ratio-1) / 2),
	}
	score := (f.Volatility + f.TrendWeakness + f.SentimentDivergence + f.DataQuality + f.VolumeAnomaly) / 5

	level := models.RiskHigh
	switch {
	case score < 0.4:
		level = models.RiskLow
	case score < 0.7:
		level = models.RiskMedium
	}

	seen := map[string]bool{}
	out := []string{}
	for _, kv := range []struct {
		name  string
		value float64
	}{
		{"volatility", f.Volatility},
		{"trend_weakness", f.TrendWeakness},
		{"sentiment_divergence", f.SentimentDivergence},
		{"data_quality", f.DataQuality},
		{"volume_anomaly", f.VolumeAnomaly},
	} {
		m := mitigations[kv.name]
		if kv.value > 0.5 && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return models.RiskAssessment{Level: level, Score: score, Factors: f, Mitigations: out}
}

func volatilityRisk(r models.VolatilityRegime) float64 {
	switch r {
	case models.VolatilityHigh:
		return 0.9
	case models.VolatilityLow:
		return 0.2
	default:
		return 0.5
	}
}

// SizePosition scales a 10% base by signal strength, risk and confidence and
// clamps the result to [2, 25] percent.
func SizePosition(score float64, risk models.RiskLevel, confidence float64) models.PositionSizing {
	signal := 0.5
	switch a := math.Abs(score); {
	case a >= 0.6:
		signal = 1.5
	case a >= 0.3:
		signal = 1.0
	}

	riskF := 1.0
	switch risk {
	case models.RiskLow:
		riskF = 1.2
	case models.RiskHigh:
		riskF = 0.6
	}

	confF := 0.5 + 0.5*clamp01(confidence)
	size := baseSizePercent * signal * riskF * confF
	size = math.Max(minSizePercent, math.Min(maxSizePercent, size))

	return models.PositionSizing{
		RecommendedSizePercent: math.Round(size*100) / 100,
		BaseSizePercent:        baseSizePercent,
		SignalFactor:           signal,
		RiskFactor:             riskF,
		ConfidenceFactor:       confF,
	}
}

// ChooseHorizon picks the holding period from trend strength, volatility and
// sentiment stability.
func ChooseHorizon(ind models.IndicatorSet, sent models.SentimentSnapshot) models.TimeHorizon {
	adx := ind.Trend.ADX
	vol := ind.Volatility.Regime
	stable := sent.Trend.Direction == models.SentimentStable || sent.Trend.Direction == ""

	switch {
	case adx >= 25 && vol != models.VolatilityHigh && stable:
		return models.TimeHorizon{
			Horizon:   models.HorizonLong,
			Rationale: fmt.Sprintf("strong trend (ADX %.1f) with %s volatility and stable sentiment favours holding", adx, vol),
		}
	case vol == models.VolatilityHigh || (adx < 20 && !stable):
		return models.TimeHorizon{
			Horizon:   models.HorizonShort,
			Rationale: fmt.Sprintf("%s volatility and %s sentiment call for a short holding period", vol, directionOr(sent.Trend.Direction)),
		}
	default:
		return models.TimeHorizon{
			Horizon:   models.HorizonMedium,
			Rationale: fmt.Sprintf("moderate trend (ADX %.1f) with %s volatility", adx, vol),
		}
	}
}

func directionOr(d models.SentimentDirection) string {
	if d == "" {
		return string(models.SentimentStable)
	}
	return string(d)
}

// Catalysts lists the near-term events behind the signal: the strongest
// evidence items, a material analyst target gap and momentum extremes.
func Catalysts(ind models.IndicatorSet, sent models.SentimentSnapshot) []models.Catalyst {
	out := []models.Catalyst{}
	for i, e := range sent.Evidence {
		if i >= 3 {
			break
		}
		out = append(out, models.Catalyst{Kind: e.Source, Description: e.Text, Impact: e.Score})
	}

	if apt, px := sent.Analyst.AveragePriceTarget, ind.CurrentPrice; apt > 0 && px > 0 {
		if gap := apt/px - 1; math.Abs(gap) >= 0.1 {
			word := "upside"
			if gap < 0 {
				word = "downside"
			}
			out = append(out, models.Catalyst{
				Kind:        "analyst_target",
				Description: fmt.Sprintf("average analyst target %.2f implies %.0f%% %s", apt, math.Abs(gap)*100, word),
				Impact:      clampUnit(gap),
			})
		}
	}

	switch rsi := ind.Momentum.RSI; {
	case ind.Status != models.StatusUnavailable && rsi >= 70:
		out = append(out, models.Catalyst{Kind: "technical", Description: fmt.Sprintf("overbought RSI %.1f may precede a pullback", rsi), Impact: -0.3})
	case ind.Status != models.StatusUnavailable && rsi <= 30:
		out = append(out, models.Catalyst{Kind: "technical", Description: fmt.Sprintf("oversold RSI %.1f may precede a rebound", rsi), Impact: 0.3})
	}
	return out
}

// Summary is a one-line description used in logs and prompts.
func Summary(r models.FusionResult) string {
	return fmt.Sprintf("%s %s score=%.3f conf=%.2f alpha=%.1f risk=%s size=%.1f%%",
		r.Symbol, r.Recommendation.Action, r.FusionScore, r.Confidence, r.Alpha,
		r.RiskAssessment.Level, r.PositionSizing.RecommendedSizePercent)
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
