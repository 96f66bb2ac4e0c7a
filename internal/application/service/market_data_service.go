package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/marketguard/internal/application/pipeline"
	"github.com/turtacn/marketguard/internal/domain/models"
	"github.com/turtacn/marketguard/internal/infrastructure/cache"
	"github.com/turtacn/marketguard/pkg/errors"
	"github.com/turtacn/marketguard/pkg/logger"
)

// Index symbols that make up the market context.
const (
	SymbolSPY       = "SPY"
	SymbolQQQ       = "QQQ"
	SymbolVIX       = "^VIX"
	SymbolESFutures = "ES=F"
	SymbolNQFutures = "NQ=F"
)

// DefaultNewsDays is the look-back used when a caller passes zero.
const DefaultNewsDays = 7

// QuoteFetcher fetches one quote from the quote provider.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// NewsFetcher fetches company news from the news provider.
type NewsFetcher interface {
	CompanyNews(ctx context.Context, symbol string, daysBack int) ([]models.NewsArticle, error)
}

// MarketDataService defines the market-data operations offered to the HTTP
// surface. Every call goes through the provider's pipeline.
type MarketDataService interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetQuotes(ctx context.Context, symbols []string) ([]*models.Quote, error)
	GetCompanyNews(ctx context.Context, symbol string, daysBack int) ([]models.NewsArticle, error)
	GetMarketContext(ctx context.Context) (*models.MarketContext, error)
}

// Pipelines are the call-sites the service routes through.
type Pipelines struct {
	StockInfo     *pipeline.Pipeline
	MarketContext *pipeline.Pipeline
	FinnhubNews   *pipeline.Pipeline
}

type marketDataServiceImpl struct {
	quotes    QuoteFetcher
	news      NewsFetcher
	pipelines Pipelines
	now       func() time.Time
	log       logger.Logger
}

// NewMarketDataService creates a new MarketDataService. Nil pipelines call
// the providers directly.
func NewMarketDataService(quotes QuoteFetcher, news NewsFetcher, pipelines Pipelines, log logger.Logger) MarketDataService {
	if pipelines.StockInfo == nil {
		pipelines.StockInfo = pipeline.New("stock_info")
	}
	if pipelines.MarketContext == nil {
		pipelines.MarketContext = pipeline.New("market_context")
	}
	if pipelines.FinnhubNews == nil {
		pipelines.FinnhubNews = pipeline.New("finnhub_news")
	}
	return &marketDataServiceImpl{
		quotes:    quotes,
		news:      news,
		pipelines: pipelines,
		now:       time.Now,
		log:       logger.OrNoop(log).WithComponent("market_data"),
	}
}

func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", errors.ErrInvalidRequest("symbol is required")
	}
	return symbol, nil
}

// GetQuote returns the quote for one symbol.
func (s *marketDataServiceImpl) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	inv := cache.Invocation{Name: "get_stock_info", Args: []any{symbol}}
	return pipeline.Run(ctx, s.pipelines.StockInfo, inv, func(ctx context.Context) (*models.Quote, error) {
		return s.quotes.FetchQuote(ctx, symbol)
	})
}

// GetQuotes returns quotes for symbols in order. Symbols that fail are
// logged and left out; only a cancelled ctx fails the whole batch.
func (s *marketDataServiceImpl) GetQuotes(ctx context.Context, symbols []string) ([]*models.Quote, error) {
	quotes := make([]*models.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return quotes, err
		}
		q, err := s.GetQuote(ctx, symbol)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return quotes, ctxErr
			}
			s.log.Warn(ctx, "Skipping symbol", logger.String("symbol", symbol), logger.Err(err))
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// GetCompanyNews returns recent news for symbol, newest first.
func (s *marketDataServiceImpl) GetCompanyNews(ctx context.Context, symbol string, daysBack int) ([]models.NewsArticle, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if daysBack <= 0 {
		daysBack = DefaultNewsDays
	}
	inv := cache.Invocation{Name: "get_company_news", Args: []any{symbol, daysBack}}
	return pipeline.Run(ctx, s.pipelines.FinnhubNews, inv, func(ctx context.Context) ([]models.NewsArticle, error) {
		return s.news.CompanyNews(ctx, symbol, daysBack)
	})
}

// GetMarketContext returns the index quotes. SPY, QQQ and VIX are required;
// futures are filled in when available.
func (s *marketDataServiceImpl) GetMarketContext(ctx context.Context) (*models.MarketContext, error) {
	inv := cache.Invocation{Name: "get_market_context"}
	return pipeline.Run(ctx, s.pipelines.MarketContext, inv, s.fetchMarketContext)
}

func (s *marketDataServiceImpl) fetchMarketContext(ctx context.Context) (*models.MarketContext, error) {
	mc := &models.MarketContext{FetchedAt: s.now().UTC()}

	required := []struct {
		symbol string
		dst    **models.Quote
	}{
		{SymbolSPY, &mc.SPY},
		{SymbolQQQ, &mc.QQQ},
		{SymbolVIX, &mc.VIX},
	}
	for _, r := range required {
		q, err := s.quotes.FetchQuote(ctx, r.symbol)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", r.symbol, err)
		}
		*r.dst = q
	}

	optional := []struct {
		symbol string
		dst    **models.Quote
	}{
		{SymbolESFutures, &mc.ESFutures},
		{SymbolNQFutures, &mc.NQFutures},
	}
	for _, o := range optional {
		q, err := s.quotes.FetchQuote(ctx, o.symbol)
		if err != nil {
			s.log.Warn(ctx, "Could not fetch futures", logger.String("symbol", o.symbol), logger.Err(err))
			continue
		}
		*o.dst = q
	}

	s.log.Info(ctx, "Market context fetched",
		logger.Float64("spy_change_pct", mc.SPY.ChangePercent()),
		logger.Float64("qqq_change_pct", mc.QQQ.ChangePercent()),
		logger.Float64("vix", mc.VIX.Price),
	)
	return mc, nil
}
