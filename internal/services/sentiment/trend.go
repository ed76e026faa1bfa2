package sentiment

import (
	"time"

	"FinFusion/internal/domain/models"
)

const (
	// HistoryWindow is the rolling window kept for trend comparison.
	HistoryWindow  = 7 * 24 * time.Hour
	trendThreshold = 0.1
)

// ComputeTrend compares the current score with the rolling history. Direction
// is taken against the mean of the window; the 24h delta uses the newest point
// at least a day old, the 7d delta the oldest point in the window.
func ComputeTrend(current float64, history []models.SentimentPoint, now time.Time) models.SentimentTrend {
	trend := models.SentimentTrend{Direction: models.SentimentStable}

	var window []models.SentimentPoint
	for _, p := range history {
		if now.Sub(p.At) <= HistoryWindow && !p.At.After(now) {
			window = append(window, p)
		}
	}
	if len(window) == 0 {
		return trend
	}

	sum := 0.0
	oldest := window[0]
	var dayOld *models.SentimentPoint
	for i, p := range window {
		sum += p.Score
		if p.At.Before(oldest.At) {
			oldest = p
		}
		if now.Sub(p.At) >= 24*time.Hour && (dayOld == nil || p.At.After(dayOld.At)) {
			dayOld = &window[i]
		}
	}

	if dayOld != nil {
		trend.Change24h = current - dayOld.Score
	}
	trend.Change7d = current - oldest.Score

	delta := current - sum/float64(len(window))
	switch {
	case delta > trendThreshold:
		trend.Direction = models.SentimentImproving
	case delta < -trendThreshold:
		trend.Direction = models.SentimentDeclining
	}
	return trend
}

// prune drops points older than the window and keeps them ordered oldest first.
func prune(points []models.SentimentPoint, now time.Time) []models.SentimentPoint {
	out := make([]models.SentimentPoint, 0, len(points))
	for _, p := range points {
		if now.Sub(p.At) <= HistoryWindow {
			out = append(out, p)
		}
	}
	return out
}
