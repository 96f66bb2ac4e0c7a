package handlers

import (
	goerrors "errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/marketguard/internal/application/dto"
	appservice "github.com/turtacn/marketguard/internal/application/service"
	"github.com/turtacn/marketguard/internal/infrastructure/marketdata"
	"github.com/turtacn/marketguard/pkg/constants"
	"github.com/turtacn/marketguard/pkg/errors"
	"github.com/turtacn/marketguard/pkg/logger"
	"github.com/turtacn/marketguard/pkg/utils"
)

// maxBatchSymbols bounds a batch quote request.
const maxBatchSymbols = 50

// MarketHandler serves quotes, news and the market context.
type MarketHandler struct {
	svc appservice.MarketDataService
	log logger.Logger
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(svc appservice.MarketDataService, log logger.Logger) *MarketHandler {
	return &MarketHandler{svc: svc, log: logger.OrNoop(log)}
}

// GetQuote returns one symbol's quote.
// @Router /api/v1/market/quotes/{symbol} [get]
func (h *MarketHandler) GetQuote(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if !utils.ValidTicker(symbol) {
		dto.SendError(c, errors.ErrInvalidRequest("invalid ticker symbol").WithMetadata("symbol", symbol))
		return
	}
	q, err := h.svc.GetQuote(c.Request.Context(), symbol)
	if err != nil {
		dto.SendError(c, providerError(err, constants.ProviderYFinance))
		return
	}
	dto.SendSuccess(c, dto.NewQuoteResponse(q))
}

// GetQuotes returns quotes for the comma-separated symbols query.
// @Router /api/v1/market/quotes [get]
func (h *MarketHandler) GetQuotes(c *gin.Context) {
	symbols := splitSymbols(c.Query("symbols"))
	if len(symbols) == 0 {
		dto.SendError(c, errors.ErrInvalidRequest("symbols query parameter is required"))
		return
	}
	if len(symbols) > maxBatchSymbols {
		dto.SendError(c, errors.ErrInvalidRequest("too many symbols").WithMetadata("max", maxBatchSymbols))
		return
	}
	for _, s := range symbols {
		if !utils.ValidTicker(s) {
			dto.SendError(c, errors.ErrInvalidRequest("invalid ticker symbol").WithMetadata("symbol", s))
			return
		}
	}

	quotes, err := h.svc.GetQuotes(c.Request.Context(), symbols)
	if err != nil {
		dto.SendError(c, providerError(err, constants.ProviderYFinance))
		return
	}

	resp := dto.QuotesResponse{Quotes: make([]dto.QuoteResponse, 0, len(quotes))}
	found := make(map[string]bool, len(quotes))
	for _, q := range quotes {
		resp.Quotes = append(resp.Quotes, dto.NewQuoteResponse(q))
		found[q.Symbol] = true
	}
	for _, s := range symbols {
		if !found[s] {
			resp.Missing = append(resp.Missing, s)
		}
	}
	dto.SendSuccess(c, resp)
}

// newsQuery binds GET /market/news/:symbol.
type newsQuery struct {
	Symbol   string `uri:"symbol" validate:"required,ticker"`
	DaysBack int    `form:"days,default=7" validate:"min=1,max=365"`
}

// GetNews returns recent company news.
// @Router /api/v1/market/news/{symbol} [get]
func (h *MarketHandler) GetNews(c *gin.Context) {
	var q newsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		dto.SendError(c, errors.ErrInvalidRequest("days must be an integer between 1 and 365"))
		return
	}
	q.Symbol = strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if err := utils.ValidateStruct(q); err != nil {
		dto.SendError(c, err)
		return
	}

	articles, err := h.svc.GetCompanyNews(c.Request.Context(), q.Symbol, q.DaysBack)
	if err != nil {
		dto.SendError(c, providerError(err, constants.ProviderFinnhub))
		return
	}
	dto.SendSuccess(c, dto.NewsResponse{Symbol: q.Symbol, DaysBack: q.DaysBack, Articles: articles})
}

// GetMarketContext returns the index quotes.
// @Router /api/v1/market/context [get]
func (h *MarketHandler) GetMarketContext(c *gin.Context) {
	mc, err := h.svc.GetMarketContext(c.Request.Context())
	if err != nil {
		dto.SendError(c, providerError(err, constants.ProviderYFinance))
		return
	}
	dto.SendSuccess(c, mc)
}

func splitSymbols(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// providerError maps a provider failure to an AppError for the response.
func providerError(err error, provider string) error {
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	switch {
	case goerrors.Is(err, marketdata.ErrSymbolNotFound):
		return errors.WrapError(err, constants.ErrCodeNotFound, "symbol not found")
	case goerrors.Is(err, marketdata.ErrAPIKeyMissing):
		return errors.WrapError(err, constants.ErrCodeConfiguration, "provider API key not configured")
	}
	var statusErr *marketdata.HTTPStatusError
	if goerrors.As(err, &statusErr) {
		if statusErr.Status == constants.StatusTooManyRequests {
			return errors.ErrRateLimited(provider).WithCause(err)
		}
		return errors.ErrUpstream(provider, statusErr.Status).WithCause(err)
	}
	return err
}
