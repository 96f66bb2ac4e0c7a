package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/marketguard/internal/config"
	"github.com/turtacn/marketguard/internal/domain/models"
	"github.com/turtacn/marketguard/pkg/logger"
)

// MaxArticles caps the articles returned per symbol.
const MaxArticles = 10

// NewsClient reads company news and quotes from a Finnhub-style API.
type NewsClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	now     func() time.Time
	logger  logger.Logger
}

// NewsOption configures a NewsClient.
type NewsOption func(*NewsClient)

// WithNewsClock overrides the clock used for the news date range.
func WithNewsClock(now func() time.Time) NewsOption {
	return func(c *NewsClient) { c.now = now }
}

// NewNewsClient creates a NewsClient. A nil httpClient gets one with
// cfg.Timeout.
func NewNewsClient(cfg config.FinnhubConfig, httpClient *http.Client, log logger.Logger, opts ...NewsOption) *NewsClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	c := &NewsClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		now:     time.Now,
		logger:  logger.OrNoop(log).WithComponent("news_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type newsItem struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

type quoteItem struct {
	Current       float64 `json:"c"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// CompanyNews returns up to MaxArticles articles about symbol from the last
// daysBack days, newest first.
func (c *NewsClient) CompanyNews(ctx context.Context, symbol string, daysBack int) ([]models.NewsArticle, error) {
	if daysBack <= 0 {
		daysBack = 7
	}
	to := c.now().UTC()
	from := to.AddDate(0, 0, -daysBack)

	var items []newsItem
	err := c.get(ctx, "company-news", url.Values{
		"symbol": {strings.ToUpper(symbol)},
		"from":   {from.Format(time.DateOnly)},
		"to":     {to.Format(time.DateOnly)},
	}, &items)
	if err != nil {
		return nil, err
	}

	if len(items) > MaxArticles {
		items = items[:MaxArticles]
	}
	articles := make([]models.NewsArticle, 0, len(items))
	for _, item := range items {
		articles = append(articles, models.NewsArticle{
			Headline: item.Headline,
			Summary:  item.Summary,
			Source:   item.Source,
			URL:      item.URL,
			Datetime: time.Unix(item.Datetime, 0).UTC(),
			Category: item.Category,
			Related:  item.Related,
		})
	}
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Datetime.After(articles[j].Datetime)
	})

	c.logger.Debug(ctx, "Fetched company news", logger.String("symbol", symbol), logger.Int("articles", len(articles)))
	return articles, nil
}

// Quote returns the provider's real-time quote for symbol.
func (c *NewsClient) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(symbol)

	var item quoteItem
	if err := c.get(ctx, "quote", url.Values{"symbol": {symbol}}, &item); err != nil {
		return nil, err
	}
	// Unknown symbols come back as an all-zero quote.
	if item.Current == 0 && item.Timestamp == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	return &models.Quote{
		Symbol:        symbol,
		Price:         item.Current,
		PreviousClose: item.PreviousClose,
		Open:          item.Open,
		DayHigh:       item.High,
		DayLow:        item.Low,
		MarketTime:    time.Unix(item.Timestamp, 0).UTC(),
	}, nil
}

func (c *NewsClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.apiKey == "" {
		return ErrAPIKeyMissing
	}
	redacted := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())
	params.Set("token", c.apiKey)
	full := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())
	return getJSON(ctx, c.http, full, redacted, out)
}
