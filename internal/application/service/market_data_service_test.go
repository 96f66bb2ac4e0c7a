package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/marketguard/internal/application/pipeline"
	"github.com/turtacn/marketguard/internal/domain/models"
	"github.com/turtacn/marketguard/internal/infrastructure/cache"
	"github.com/turtacn/marketguard/internal/infrastructure/marketdata"
	"github.com/turtacn/marketguard/internal/infrastructure/monitoring"
	"github.com/turtacn/marketguard/internal/infrastructure/persistence/memory"
	"github.com/turtacn/marketguard/internal/infrastructure/ratelimit"
	"github.com/turtacn/marketguard/pkg/constants"
	apperrors "github.com/turtacn/marketguard/pkg/errors"
)

type mockQuotes struct{ mock.Mock }

func (m *mockQuotes) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	args := m.Called(ctx, symbol)
	q, _ := args.Get(0).(*models.Quote)
	return q, args.Error(1)
}

type mockNews struct{ mock.Mock }

func (m *mockNews) CompanyNews(ctx context.Context, symbol string, daysBack int) ([]models.NewsArticle, error) {
	args := m.Called(ctx, symbol, daysBack)
	a, _ := args.Get(0).([]models.NewsArticle)
	return a, args.Error(1)
}

type fixture struct {
	svc      MarketDataService
	quotes   *mockQuotes
	news     *mockNews
	yfinance *monitoring.APICallMonitor
	finnhub  *monitoring.APICallMonitor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore(time.Minute)
	yf := monitoring.NewAPICallMonitor(store, monitoring.MonitorOptions{APIName: constants.ProviderYFinance}, nil, nil, nil)
	fh := monitoring.NewAPICallMonitor(store, monitoring.MonitorOptions{APIName: constants.ProviderFinnhub}, nil, nil, nil)
	yfLimiter := ratelimit.NewTokenBucket(constants.ProviderYFinance, 1000)
	fhLimiter := ratelimit.NewTokenBucket(constants.ProviderFinnhub, 1000)

	newCache := func(prefix string) *cache.ResultCache {
		return cache.New(store, cache.Options{TTL: time.Minute, Prefix: prefix}, nil, nil)
	}

	f := &fixture{quotes: &mockQuotes{}, news: &mockNews{}, yfinance: yf, finnhub: fh}
	f.svc = NewMarketDataService(f.quotes, f.news, Pipelines{
		StockInfo: pipeline.New(constants.CachePrefixStockInfo,
			pipeline.WithLimiter(yfLimiter), pipeline.WithCache(newCache(constants.CachePrefixStockInfo)), pipeline.WithMonitor(yf)),
		MarketContext: pipeline.New(constants.CachePrefixMarketContext,
			pipeline.WithLimiter(yfLimiter), pipeline.WithCache(newCache(constants.CachePrefixMarketContext)), pipeline.WithMonitor(yf)),
		FinnhubNews: pipeline.New(constants.CachePrefixFinnhubNews,
			pipeline.WithLimiter(fhLimiter), pipeline.WithCache(newCache(constants.CachePrefixFinnhubNews)), pipeline.WithMonitor(fh)),
	}, nil)
	return f
}

func TestGetQuote_CachedAndMonitored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.quotes.On("FetchQuote", mock.Anything, "AAPL").Return(&models.Quote{Symbol: "AAPL", Price: 189.5}, nil).Once()

	q1, err := f.svc.GetQuote(ctx, " aapl")
	require.NoError(t, err)
	q2, err := f.svc.GetQuote(ctx, "AAPL")
	require.NoError(t, err)

	assert.Equal(t, q1, q2)
	f.quotes.AssertExpectations(t)
	assert.Equal(t, int64(1), f.yfinance.GetStats(ctx).TotalCalls)
	assert.Equal(t, int64(0), f.finnhub.GetStats(ctx).TotalCalls)
}

func TestGetQuote_EmptySymbol(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetQuote(context.Background(), "  ")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, constants.ErrCodeInvalidRequest, appErr.Code())
}

func TestGetQuotes_SkipsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.quotes.On("FetchQuote", mock.Anything, "AAPL").Return(&models.Quote{Symbol: "AAPL"}, nil)
	f.quotes.On("FetchQuote", mock.Anything, "ZZZZ").Return(nil, &marketdata.HTTPStatusError{Status: 404})
	f.quotes.On("FetchQuote", mock.Anything, "MSFT").Return(&models.Quote{Symbol: "MSFT"}, nil)

	quotes, err := f.svc.GetQuotes(ctx, []string{"AAPL", "ZZZZ", "MSFT"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "AAPL", quotes[0].Symbol)
	assert.Equal(t, "MSFT", quotes[1].Symbol)

	stats := f.yfinance.GetStats(ctx)
	assert.Equal(t, int64(3), stats.TotalCalls)
	assert.Equal(t, int64(1), stats.FailedCalls)
}

func TestGetQuotes_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	quotes, err := f.svc.GetQuotes(ctx, []string{"AAPL"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, quotes)
	f.quotes.AssertNotCalled(t, "FetchQuote", mock.Anything, mock.Anything)
}

func TestGetCompanyNews_DefaultsAndRateLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	articles := []models.NewsArticle{{Headline: "newest"}, {Headline: "older"}}
	f.news.On("CompanyNews", mock.Anything, "NVDA", DefaultNewsDays).Return(articles, nil).Once()
	f.news.On("CompanyNews", mock.Anything, "NVDA", 3).Return(nil, &marketdata.HTTPStatusError{Status: 429})

	got, err := f.svc.GetCompanyNews(ctx, "nvda", 0)
	require.NoError(t, err)
	assert.Equal(t, articles, got)

	got, err = f.svc.GetCompanyNews(ctx, "NVDA", DefaultNewsDays)
	require.NoError(t, err, "served from cache")
	assert.Len(t, got, 2)

	_, err = f.svc.GetCompanyNews(ctx, "NVDA", 3)
	var statusErr *marketdata.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)

	stats := f.finnhub.GetStats(ctx)
	assert.Equal(t, int64(2), stats.TotalCalls)
	assert.Equal(t, int64(1), stats.RateLimitedCalls)
	f.news.AssertExpectations(t)
}

func TestGetMarketContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.quotes.On("FetchQuote", mock.Anything, SymbolSPY).Return(&models.Quote{Symbol: SymbolSPY, Price: 101, PreviousClose: 100}, nil).Once()
	f.quotes.On("FetchQuote", mock.Anything, SymbolQQQ).Return(&models.Quote{Symbol: SymbolQQQ, Price: 99, PreviousClose: 100}, nil).Once()
	f.quotes.On("FetchQuote", mock.Anything, SymbolVIX).Return(&models.Quote{Symbol: SymbolVIX, Price: 14.2}, nil).Once()
	f.quotes.On("FetchQuote", mock.Anything, SymbolESFutures).Return(nil, errors.New("no futures data")).Once()
	f.quotes.On("FetchQuote", mock.Anything, SymbolNQFutures).Return(&models.Quote{Symbol: SymbolNQFutures}, nil).Once()

	mc, err := f.svc.GetMarketContext(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mc.SPY.ChangePercent(), 1e-9)
	assert.InDelta(t, -1.0, mc.QQQ.ChangePercent(), 1e-9)
	assert.Equal(t, 14.2, mc.VIX.Price)
	assert.Nil(t, mc.ESFutures)
	require.NotNil(t, mc.NQFutures)

	_, err = f.svc.GetMarketContext(ctx)
	require.NoError(t, err)
	f.quotes.AssertExpectations(t)
	assert.Equal(t, int64(1), f.yfinance.GetStats(ctx).TotalCalls, "one record per context fetch")
}

func TestGetMarketContext_RequiredQuoteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.quotes.On("FetchQuote", mock.Anything, SymbolSPY).Return(nil, &marketdata.HTTPStatusError{Status: 429})

	_, err := f.svc.GetMarketContext(ctx)
	var statusErr *marketdata.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)

	stats := f.yfinance.GetStats(ctx)
	assert.Equal(t, int64(1), stats.FailedCalls)
	assert.Equal(t, int64(1), stats.RateLimitedCalls)
}
