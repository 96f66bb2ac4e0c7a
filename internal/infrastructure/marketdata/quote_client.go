package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/turtacn/marketguard/internal/config"
	"github.com/turtacn/marketguard/internal/domain/models"
	"github.com/turtacn/marketguard/pkg/logger"
)

// QuoteClient reads daily quote metadata from a Yahoo-Finance-style chart API.
type QuoteClient struct {
	baseURL string
	http    *http.Client
	logger  logger.Logger
}

// NewQuoteClient creates a QuoteClient. A nil httpClient gets one with
// cfg.Timeout.
func NewQuoteClient(cfg config.YFinanceConfig, httpClient *http.Client, log logger.Logger) *QuoteClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &QuoteClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  logger.OrNoop(log).WithComponent("quote_client"),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta chartMeta `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartMeta struct {
	Symbol               string  `json:"symbol"`
	Currency             string  `json:"currency"`
	ExchangeName         string  `json:"exchangeName"`
	RegularMarketPrice   float64 `json:"regularMarketPrice"`
	PreviousClose        float64 `json:"previousClose"`
	ChartPreviousClose   float64 `json:"chartPreviousClose"`
	RegularMarketOpen    float64 `json:"regularMarketOpen"`
	RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
	RegularMarketVolume  int64   `json:"regularMarketVolume"`
	RegularMarketTime    int64   `json:"regularMarketTime"`
}

// FetchQuote returns the latest quote for symbol.
func (c *QuoteClient) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrSymbolNotFound)
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol),
		url.Values{"interval": {"1d"}, "range": {"1d"}}.Encode())

	var body chartResponse
	if err := getJSON(ctx, c.http, endpoint, endpoint, &body); err != nil {
		return nil, err
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrSymbolNotFound, symbol, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	meta := body.Chart.Result[0].Meta
	previous := meta.PreviousClose
	if previous == 0 {
		previous = meta.ChartPreviousClose
	}
	quote := &models.Quote{
		Symbol:        symbol,
		Currency:      meta.Currency,
		Exchange:      meta.ExchangeName,
		Price:         meta.RegularMarketPrice,
		PreviousClose: previous,
		Open:          meta.RegularMarketOpen,
		DayHigh:       meta.RegularMarketDayHigh,
		DayLow:        meta.RegularMarketDayLow,
		Volume:        meta.RegularMarketVolume,
	}
	if meta.RegularMarketTime > 0 {
		quote.MarketTime = time.Unix(meta.RegularMarketTime, 0).UTC()
	}

	c.logger.Debug(ctx, "Fetched quote", logger.String("symbol", symbol), logger.Float64("price", quote.Price))
	return quote, nil
}
