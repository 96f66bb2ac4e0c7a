package dto

import (
	"github.com/turtacn/marketguard/internal/domain/models"
	"github.com/turtacn/marketguard/internal/domain/service"
)

// QuoteResponse adds the derived change fields to a quote.
type QuoteResponse struct {
	*models.Quote
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// NewQuoteResponse builds a QuoteResponse.
func NewQuoteResponse(q *models.Quote) QuoteResponse {
	return QuoteResponse{Quote: q, Change: q.Change(), ChangePercent: q.ChangePercent()}
}

// QuotesResponse is the batch quote result. Missing lists the requested
// symbols that could not be fetched.
type QuotesResponse struct {
	Quotes  []QuoteResponse `json:"quotes"`
	Missing []string        `json:"missing,omitempty"`
}

// NewsResponse lists a symbol's recent articles.
type NewsResponse struct {
	Symbol   string               `json:"symbol"`
	DaysBack int                  `json:"days_back"`
	Articles []models.NewsArticle `json:"articles"`
}

// CacheStatsResponse reports store statistics and the configured caches.
// Stats is nil when the store cannot report any.
type CacheStatsResponse struct {
	Supported bool                `json:"supported"`
	Stats     *service.StoreStats `json:"stats,omitempty"`
	Caches    []CacheInfoDTO      `json:"caches"`
}

// CacheInfoDTO describes one configured cache.
type CacheInfoDTO struct {
	Prefix     string  `json:"prefix"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// CacheClearResponse reports a prefix clear.
type CacheClearResponse struct {
	Prefix    string `json:"prefix"`
	Supported bool   `json:"supported"`
	Deleted   int64  `json:"deleted"`
}
