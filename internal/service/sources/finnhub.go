package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	"FinFusion/internal/service/ratelimit"
	"FinFusion/pkg/logger"
)

const finnhubLimiterKey = "finnhub"

// ErrFinnhubAPI wraps any non-2xx answer from Finnhub.
var ErrFinnhubAPI = errors.New("finnhub api error")

// FinnhubClient reads company news, social sentiment and analyst
// recommendations from the Finnhub REST API.
type FinnhubClient struct {
	client     *resty.Client
	apiKey     string
	limiter    *ratelimit.Limiter
	newsWindow time.Duration
	log        *logger.Logger
	now        func() time.Time
}

var (
	_ repository.NewsSource    = (*FinnhubClient)(nil)
	_ repository.SocialSource  = (*FinnhubClient)(nil)
	_ repository.AnalystSource = (*FinnhubClient)(nil)
)

type FinnhubOption func(*FinnhubClient)

func WithFinnhubLimiter(l *ratelimit.Limiter) FinnhubOption {
	return func(c *FinnhubClient) { c.limiter = l }
}

func WithNewsWindow(d time.Duration) FinnhubOption {
	return func(c *FinnhubClient) {
		if d > 0 {
			c.newsWindow = d
		}
	}
}

func WithFinnhubLogger(l *logger.Logger) FinnhubOption {
	return func(c *FinnhubClient) { c.log = l }
}

func WithFinnhubClock(now func() time.Time) FinnhubOption {
	return func(c *FinnhubClient) { c.now = now }
}

func NewFinnhubClient(baseURL, apiKey string, timeout time.Duration, opts ...FinnhubOption) *FinnhubClient {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")

	c := &FinnhubClient{
		client:     client,
		apiKey:     apiKey,
		newsWindow: 72 * time.Hour,
		log:        logger.Nop(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type finnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

type finnhubSocialPoint struct {
	AtTime          string  `json:"atTime"`
	Mention         int     `json:"mention"`
	PositiveMention int     `json:"positiveMention"`
	NegativeMention int     `json:"negativeMention"`
	PositiveScore   float64 `json:"positiveScore"`
	NegativeScore   float64 `json:"negativeScore"`
	Score           float64 `json:"score"`
}

type finnhubSocial struct {
	Symbol  string               `json:"symbol"`
	Reddit  []finnhubSocialPoint `json:"reddit"`
	Twitter []finnhubSocialPoint `json:"twitter"`
}

type finnhubTrend struct {
	Period     string `json:"period"`
	StrongBuy  int    `json:"strongBuy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strongSell"`
}

type finnhubPriceTarget struct {
	LastUpdated  string  `json:"lastUpdated"`
	TargetHigh   float64 `json:"targetHigh"`
	TargetLow    float64 `json:"targetLow"`
	TargetMean   float64 `json:"targetMean"`
	TargetMedian float64 `json:"targetMedian"`
}

func (c *FinnhubClient) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	if c.apiKey == "" {
		return fmt.Errorf("%w: api key not configured", ErrFinnhubAPI)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, finnhubLimiterKey); err != nil {
			return fmt.Errorf("finnhub rate limit wait: %w", err)
		}
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("token", c.apiKey).
		Get(path)
	if err != nil {
		return fmt.Errorf("finnhub %s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d: %s", ErrFinnhubAPI, path, resp.StatusCode(), truncateBody(resp.String()))
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("finnhub %s: decode: %w", path, err)
	}
	return nil
}

// FetchNews returns company news published inside the configured window.
func (c *FinnhubClient) FetchNews(ctx context.Context, symbol string) ([]models.NewsArticle, error) {
	to := c.now().UTC()
	from := to.Add(-c.newsWindow)

	var raw []finnhubNews
	err := c.get(ctx, "/company-news", map[string]string{
		"symbol": symbol,
		"from":   from.Format("2006-01-02"),
		"to":     to.Format("2006-01-02"),
	}, &raw)
	if err != nil {
		return nil, err
	}

	out := make([]models.NewsArticle, 0, len(raw))
	for _, n := range raw {
		if strings.TrimSpace(n.Headline) == "" && strings.TrimSpace(n.Summary) == "" {
			continue
		}
		out = append(out, models.NewsArticle{
			Title:       n.Headline,
			Description: n.Summary,
			Source:      n.Source,
			URL:         n.URL,
			PublishedAt: time.Unix(n.DateTime, 0).UTC(),
		})
	}
	c.log.Debug("finnhub news fetched", logger.Symbol(symbol), logger.Int("articles", len(out)))
	return out, nil
}

// FetchSocial sums reddit and twitter mentions. The provider score is the
// mention-weighted mean of the per-interval scores.
func (c *FinnhubClient) FetchSocial(ctx context.Context, symbol string) (*models.SocialAggregate, error) {
	var raw finnhubSocial
	if err := c.get(ctx, "/stock/social-sentiment", map[string]string{"symbol": symbol}, &raw); err != nil {
		return nil, err
	}

	agg := &models.SocialAggregate{}
	var weighted float64
	for _, feed := range [][]finnhubSocialPoint{raw.Reddit, raw.Twitter} {
		for _, p := range feed {
			agg.MentionCount += p.Mention
			agg.PositiveCount += p.PositiveMention
			agg.NegativeCount += p.NegativeMention
			weighted += p.Score * float64(p.Mention)
		}
	}
	if neutral := agg.MentionCount - agg.PositiveCount - agg.NegativeCount; neutral > 0 {
		agg.NeutralCount = neutral
	}
	if agg.MentionCount > 0 {
		agg.SentimentScore = weighted / float64(agg.MentionCount)
	}
	return agg, nil
}

// FetchAnalystRatings expands the latest recommendation trend into one rating
// per analyst vote, each carrying the consensus mean price target.
func (c *FinnhubClient) FetchAnalystRatings(ctx context.Context, symbol string) ([]models.AnalystRating, error) {
	var trends []finnhubTrend
	if err := c.get(ctx, "/stock/recommendation", map[string]string{"symbol": symbol}, &trends); err != nil {
		return nil, err
	}
	if len(trends) == 0 {
		return nil, nil
	}

	latest := trends[0]
	for _, t := range trends[1:] {
		if t.Period > latest.Period {
			latest = t
		}
	}

	var target finnhubPriceTarget
	if err := c.get(ctx, "/stock/price-target", map[string]string{"symbol": symbol}, &target); err != nil {
		// price targets are a premium endpoint on some plans
		c.log.Warn("finnhub price target unavailable", logger.Symbol(symbol), logger.Error(err))
	}

	ratedAt, err := time.Parse("2006-01-02", latest.Period)
	if err != nil {
		ratedAt = c.now().UTC()
	}

	var out []models.AnalystRating
	add := func(rating string, n int) {
		for i := 0; i < n; i++ {
			out = append(out, models.AnalystRating{
				Analyst:     "finnhub-consensus",
				Rating:      rating,
				PriceTarget: target.TargetMean,
				RatedAt:     ratedAt,
			})
		}
	}
	add("STRONG_BUY", latest.StrongBuy)
	add("BUY", latest.Buy)
	add("HOLD", latest.Hold)
	add("SELL", latest.Sell)
	add("STRONG_SELL", latest.StrongSell)
	return out, nil
}

func truncateBody(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
