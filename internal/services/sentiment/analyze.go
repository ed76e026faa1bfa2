package sentiment

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"FinFusion/internal/domain/models"
)

const (
	// EvidenceThreshold is the minimum |score| for an item to be cited.
	EvidenceThreshold = 0.2
	maxEvidence       = 5

	fullNewsCoverage     = 5
	fullSocialMentions   = 500
	fullAnalystCoverage  = 3
	defaultAnalystWeight = 0.5
)

// AnalyzeNews scores each article and returns the mean with a confidence
// that grows as per-article scores agree and coverage increases.
func AnalyzeNews(articles []models.NewsArticle) (models.SourceSentiment, []models.Evidence) {
	res := models.SourceSentiment{Count: len(articles), Status: models.StatusOK}
	if len(articles) == 0 {
		return res, nil
	}

	scores := make([]float64, len(articles))
	var evidence []models.Evidence
	for i, a := range articles {
		scores[i], _ = ScoreText(a.Text())
		if math.Abs(scores[i]) > EvidenceThreshold {
			evidence = append(evidence, models.Evidence{Source: "news", Text: headline(a), Score: scores[i]})
		}
	}

	mean := stat.Mean(scores, nil)
	spread := 0.0
	if len(scores) > 1 {
		spread = stat.StdDev(scores, nil)
	}
	coverage := math.Min(1, float64(len(articles))/fullNewsCoverage)

	res.Score = clampUnit(mean)
	res.Confidence = clamp01((1 - math.Min(spread, 1)) * coverage)
	return res, evidence
}

func headline(a models.NewsArticle) string {
	if a.Title != "" {
		return a.Title
	}
	return truncate(a.Description, 160)
}

// AnalyzeSocial uses the provider score when present, otherwise the net
// positive share. Confidence scales with mention volume.
func AnalyzeSocial(agg *models.SocialAggregate) (models.SourceSentiment, []models.Evidence) {
	res := models.SourceSentiment{Status: models.StatusOK}
	if agg == nil {
		return res, nil
	}
	res.Count = agg.MentionCount

	score := agg.SentimentScore
	if score == 0 {
		if total := agg.PositiveCount + agg.NegativeCount + agg.NeutralCount; total > 0 {
			score = float64(agg.PositiveCount-agg.NegativeCount) / float64(total)
		}
	}
	res.Score = clampUnit(score)
	res.Confidence = clamp01(float64(agg.MentionCount) / fullSocialMentions)

	var evidence []models.Evidence
	for _, m := range agg.SampleMentions {
		s, _ := ScoreText(m)
		if math.Abs(s) > EvidenceThreshold {
			evidence = append(evidence, models.Evidence{Source: "social", Text: truncate(m, 160), Score: s})
		}
	}
	return res, evidence
}

// RatingValue maps an analyst rating onto {-1, 0, 1}. Unknown ratings count as hold.
func RatingValue(rating string) float64 {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(rating), " ", "_")) {
	case "STRONG_BUY", "BUY", "OUTPERFORM", "OVERWEIGHT", "ACCUMULATE":
		return 1
	case "STRONG_SELL", "SELL", "UNDERPERFORM", "UNDERWEIGHT", "REDUCE":
		return -1
	default:
		return 0
	}
}

// AnalyzeAnalysts returns the confidence-weighted net rating and the average price target.
func AnalyzeAnalysts(ratings []models.AnalystRating) models.AnalystSentiment {
	res := models.AnalystSentiment{SourceSentiment: models.SourceSentiment{Count: len(ratings), Status: models.StatusOK}}
	if len(ratings) == 0 {
		return res
	}

	var weighted, weights, targets float64
	targetCount := 0
	for _, r := range ratings {
		c := r.Confidence
		if c <= 0 || c > 1 {
			c = defaultAnalystWeight
		}
		v := RatingValue(r.Rating)
		switch {
		case v > 0:
			res.Buy++
		case v < 0:
			res.Sell++
		default:
			res.Hold++
		}
		weighted += v * c
		weights += c
		if r.PriceTarget > 0 {
			targets += r.PriceTarget
			targetCount++
		}
	}

	if weights > 0 {
		res.Score = clampUnit(weighted / weights)
	}
	coverage := math.Min(1, float64(len(ratings))/fullAnalystCoverage)
	res.Confidence = clamp01(weights / float64(len(ratings)) * coverage)
	if targetCount > 0 {
		res.AveragePriceTarget = targets / float64(targetCount)
	}
	return res
}

// Combine weights each source by its own confidence normalized to sum to 1.
// A zero-confidence source contributes nothing.
func Combine(news, social models.SourceSentiment, analyst models.AnalystSentiment) (score, confidence float64, w models.SourceWeights) {
	total := news.Confidence + social.Confidence + analyst.Confidence
	if total <= 0 {
		return 0, 0, w
	}
	w = models.SourceWeights{
		News:    news.Confidence / total,
		Social:  social.Confidence / total,
		Analyst: analyst.Confidence / total,
	}
	score = w.News*news.Score + w.Social*social.Score + w.Analyst*analyst.Score
	confidence = w.News*news.Confidence + w.Social*social.Confidence + w.Analyst*analyst.Confidence
	return clampUnit(score), clamp01(confidence), w
}

// SelectEvidence keeps the strongest items, most material first.
func SelectEvidence(items []models.Evidence) []models.Evidence {
	out := make([]models.Evidence, 0, len(items))
	for _, e := range items {
		if math.Abs(e.Score) > EvidenceThreshold {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return math.Abs(out[i].Score) > math.Abs(out[j].Score) })
	if len(out) > maxEvidence {
		out = out[:maxEvidence]
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
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
