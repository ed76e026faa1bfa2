package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	"FinFusion/pkg/logger"
)

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	PubDate     string    `xml:"pubDate"`
	Source      rssSource `xml:"source"`
}

type rssSource struct {
	URL  string `xml:"url,attr"`
	Text string `xml:",chardata"`
}

// RSSNewsSource searches a Google News style RSS endpoint for the symbol.
type RSSNewsSource struct {
	client      *resty.Client
	url         string
	language    string
	country     string
	maxArticles int
	log         *logger.Logger
}

var _ repository.NewsSource = (*RSSNewsSource)(nil)

func NewRSSNewsSource(url, language, country string, maxArticles int, timeout time.Duration, log *logger.Logger) *RSSNewsSource {
	if language == "" {
		language = "en-US"
	}
	if country == "" {
		country = "US"
	}
	if maxArticles <= 0 {
		maxArticles = 25
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; finfusion/1.0)")

	return &RSSNewsSource{
		client:      client,
		url:         url,
		language:    language,
		country:     country,
		maxArticles: maxArticles,
		log:         log,
	}
}

func (s *RSSNewsSource) FetchNews(ctx context.Context, symbol string) ([]models.NewsArticle, error) {
	lang := strings.SplitN(s.language, "-", 2)[0]
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":    symbol + " stock",
			"hl":   s.language,
			"gl":   s.country,
			"ceid": s.country + ":" + lang,
		}).
		Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("rss news %s: %w", symbol, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("rss news %s: status %d", symbol, resp.StatusCode())
	}

	articles, err := ParseRSS(resp.Body(), s.maxArticles)
	if err != nil {
		return nil, fmt.Errorf("rss news %s: %w", symbol, err)
	}
	s.log.Debug("rss news fetched", logger.Symbol(symbol), logger.Int("articles", len(articles)))
	return articles, nil
}

// ParseRSS decodes an RSS 2.0 document into articles, stripping HTML from
// descriptions. Items with an unparseable date keep a zero PublishedAt.
func ParseRSS(body []byte, limit int) ([]models.NewsArticle, error) {
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode rss: %w", err)
	}

	out := make([]models.NewsArticle, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		source := strings.TrimSpace(it.Source.Text)
		// Google appends " - Publisher" to every title.
		if source != "" {
			title = strings.TrimSuffix(title, " - "+source)
		}
		a := models.NewsArticle{
			Title:       title,
			Description: StripHTML(it.Description),
			Source:      source,
			URL:         it.Link,
		}
		if t, err := parseRSSDate(it.PubDate); err == nil {
			a.PublishedAt = t
		}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func parseRSSDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC1123, time.RFC1123Z, time.RFC822, time.RFC822Z, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed.
func StripHTML(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
