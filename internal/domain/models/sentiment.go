package models

import "time"

// NewsArticle is a raw news item from a news source.
type NewsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Text joins the scoreable parts of the article.
func (a NewsArticle) Text() string {
	return a.Title + " " + a.Description + " " + a.Content
}

// SocialAggregate is a pre-aggregated social feed summary.
type SocialAggregate struct {
	MentionCount   int      `json:"mention_count"`
	PositiveCount  int      `json:"positive_count"`
	NegativeCount  int      `json:"negative_count"`
	NeutralCount   int      `json:"neutral_count"`
	SentimentScore float64  `json:"sentiment_score"`
	SampleMentions []string `json:"sample_mentions"`
}

// AnalystRating is a single analyst opinion.
type AnalystRating struct {
	Analyst     string    `json:"analyst"`
	Rating      string    `json:"rating"` // BUY, HOLD, SELL, STRONG_BUY, ...
	PriceTarget float64   `json:"price_target"`
	Confidence  float64   `json:"confidence"`
	RatedAt     time.Time `json:"rated_at"`
}

type SentimentDirection string

const (
	SentimentImproving SentimentDirection = "improving"
	SentimentDeclining SentimentDirection = "declining"
	SentimentStable    SentimentDirection = "stable"
)

// SourceSentiment is the per-source score. A failed source has zero confidence.
type SourceSentiment struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Count      int     `json:"count"`
	Status     Status  `json:"status"`
	Error      string  `json:"error,omitempty"`
}

type AnalystSentiment struct {
	SourceSentiment
	AveragePriceTarget float64 `json:"average_price_target"`
	Buy                int     `json:"buy"`
	Hold               int     `json:"hold"`
	Sell               int     `json:"sell"`
}

type SourceWeights struct {
	News    float64 `json:"news"`
	Social  float64 `json:"social"`
	Analyst float64 `json:"analyst"`
}

type SourceCounts struct {
	News    int `json:"news"`
	Social  int `json:"social"`
	Analyst int `json:"analyst"`
}

// Total is the number of raw items behind the snapshot.
func (c SourceCounts) Total() int {
	return c.News + c.Social + c.Analyst
}

type Evidence struct {
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}

type SentimentTrend struct {
	Direction SentimentDirection `json:"direction"`
	Change24h float64            `json:"change_24h"`
	Change7d  float64            `json:"change_7d"`
}

// SentimentSnapshot is the SentimentEngine output for one symbol.
type SentimentSnapshot struct {
	Symbol       string           `json:"symbol"`
	OverallScore float64          `json:"overall_score"`
	Confidence   float64          `json:"confidence"`
	News         SourceSentiment  `json:"news_sentiment"`
	Social       SourceSentiment  `json:"social_sentiment"`
	Analyst      AnalystSentiment `json:"analyst_sentiment"`
	Weights      SourceWeights    `json:"weights"`
	Evidence     []Evidence       `json:"evidence"`
	Trend        SentimentTrend   `json:"trend"`
	Sources      SourceCounts     `json:"sources"`
	Status       Status           `json:"status"`
	AnalyzedAt   time.Time        `json:"analyzed_at"`
}

// EmptySentimentSnapshot is the canonical all-zero snapshot.
func EmptySentimentSnapshot(symbol string) SentimentSnapshot {
	unavailable := SourceSentiment{Status: StatusUnavailable}
	return SentimentSnapshot{
		Symbol:     symbol,
		News:       unavailable,
		Social:     unavailable,
		Analyst:    AnalystSentiment{SourceSentiment: unavailable},
		Evidence:   []Evidence{},
		Trend:      SentimentTrend{Direction: SentimentStable},
		Status:     StatusUnavailable,
		AnalyzedAt: time.Now().UTC(),
	}
}

// SentimentPoint is one entry of the rolling sentiment history.
type SentimentPoint struct {
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"at"`
}
