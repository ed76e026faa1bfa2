package sources

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
)

var (
	positiveHeadlines = []string{
		"%s beats earnings estimates as revenue growth surges",
		"Analysts upgrade %s after strong quarterly profit",
		"%s shares rally on record demand and upbeat outlook",
		"%s announces breakthrough product, stock jumps",
		"%s expands buyback, investors optimistic",
	}
	negativeHeadlines = []string{
		"%s misses estimates as margins decline",
		"%s faces probe over accounting concerns",
		"Analysts downgrade %s citing weak guidance",
		"%s shares plunge after profit warning",
		"%s announces layoffs amid slump in sales",
	}
	neutralHeadlines = []string{
		"%s to present at industry conference next week",
		"%s schedules annual shareholder meeting",
		"%s names new board member",
	}
	analystFirms = []string{"Morgan Stanley", "Goldman Sachs", "JPMorgan", "Barclays", "UBS", "Citi", "Jefferies"}
)

// MockSources implements the news, social and analyst sources from an
// injected random source, so a fixed seed reproduces the same inputs. Each
// fetch draws from its own stream keyed by source and symbol, which keeps
// results independent of the order concurrent fetches run in.
type MockSources struct {
	seed  int64
	bias  float64 // shifts every draw toward positive (>0) or negative (<0)
	price float64
	now   func() time.Time
}

var (
	_ repository.NewsSource    = (*MockSources)(nil)
	_ repository.SocialSource  = (*MockSources)(nil)
	_ repository.AnalystSource = (*MockSources)(nil)
)

type MockOption func(*MockSources)

// WithBias skews generated sentiment; values beyond +/-1.25 make every draw one-sided.
func WithBias(b float64) MockOption { return func(m *MockSources) { m.bias = b } }

// WithReferencePrice anchors analyst price targets.
func WithReferencePrice(p float64) MockOption { return func(m *MockSources) { m.price = p } }

func NewMockSources(rng *rand.Rand, opts ...MockOption) *MockSources {
	m := &MockSources{
		seed:  rng.Int63(),
		price: 100,
		now:   func() time.Time { return time.Date(2025, 1, 2, 21, 0, 0, 0, time.UTC) },
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *MockSources) stream(kind, symbol string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(kind + ":" + symbol))
	return rand.New(rand.NewSource(m.seed ^ int64(h.Sum64())))
}

// draw returns -1, 0 or 1 with the bias applied.
func (m *MockSources) draw(rng *rand.Rand) int {
	x := rng.Float64()*2 - 1 + m.bias
	switch {
	case x > 0.25:
		return 1
	case x < -0.25:
		return -1
	default:
		return 0
	}
}

func (m *MockSources) FetchNews(ctx context.Context, symbol string) ([]models.NewsArticle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng := m.stream("news", symbol)

	n := 5 + rng.Intn(10)
	out := make([]models.NewsArticle, 0, n)
	for i := 0; i < n; i++ {
		var pool []string
		switch m.draw(rng) {
		case 1:
			pool = positiveHeadlines
		case -1:
			pool = negativeHeadlines
		default:
			pool = neutralHeadlines
		}
		title := fmt.Sprintf(pool[rng.Intn(len(pool))], symbol)
		out = append(out, models.NewsArticle{
			Title:       title,
			Description: title,
			Source:      "mock-wire",
			PublishedAt: m.now().Add(-time.Duration(rng.Intn(72)) * time.Hour),
		})
	}
	return out, nil
}

func (m *MockSources) FetchSocial(ctx context.Context, symbol string) (*models.SocialAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng := m.stream("social", symbol)

	agg := &models.SocialAggregate{MentionCount: 50 + rng.Intn(900)}
	for i := 0; i < agg.MentionCount; i++ {
		switch m.draw(rng) {
		case 1:
			agg.PositiveCount++
		case -1:
			agg.NegativeCount++
		default:
			agg.NeutralCount++
		}
	}
	agg.SentimentScore = float64(agg.PositiveCount-agg.NegativeCount) / float64(agg.MentionCount)
	agg.SampleMentions = []string{
		fmt.Sprintf("$%s looking strong, buying the dip", symbol),
		fmt.Sprintf("$%s weak guidance, I'm out", symbol),
	}
	return agg, nil
}

func (m *MockSources) FetchAnalystRatings(ctx context.Context, symbol string) ([]models.AnalystRating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng := m.stream("analyst", symbol)

	n := 2 + rng.Intn(len(analystFirms)-1)
	out := make([]models.AnalystRating, 0, n)
	for i := 0; i < n; i++ {
		rating, drift := "HOLD", 0.0
		switch m.draw(rng) {
		case 1:
			rating, drift = "BUY", 0.15
		case -1:
			rating, drift = "SELL", -0.12
		}
		out = append(out, models.AnalystRating{
			Analyst:     analystFirms[i],
			Rating:      rating,
			PriceTarget: m.price * (1 + drift + (rng.Float64()-0.5)*0.05),
			Confidence:  0.5 + rng.Float64()*0.4,
			RatedAt:     m.now().AddDate(0, 0, -rng.Intn(30)),
		})
	}
	return out, nil
}
