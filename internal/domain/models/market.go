package models

import "time"

// Quote is a normalized snapshot of a symbol's trading data.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Currency      string    `json:"currency,omitempty"`
	Exchange      string    `json:"exchange,omitempty"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Open          float64   `json:"open,omitempty"`
	DayHigh       float64   `json:"day_high,omitempty"`
	DayLow        float64   `json:"day_low,omitempty"`
	Volume        int64     `json:"volume,omitempty"`
	MarketTime    time.Time `json:"market_time"`
}

// Change returns the absolute change against the previous close.
func (q *Quote) Change() float64 {
	return q.Price - q.PreviousClose
}

// ChangePercent returns the percent change against the previous close, or 0
// when no previous close is known.
func (q *Quote) ChangePercent() float64 {
	if q.PreviousClose == 0 {
		return 0
	}
	return (q.Price - q.PreviousClose) / q.PreviousClose * 100
}

// NewsArticle is one company news item.
type NewsArticle struct {
	Headline string    `json:"headline"`
	Summary  string    `json:"summary"`
	Source   string    `json:"source"`
	URL      string    `json:"url"`
	Datetime time.Time `json:"datetime"`
	Category string    `json:"category"`
	Related  string    `json:"related"`
}

// MarketContext carries the broad-market index quotes used by the scanners.
// Futures are best effort and may be nil.
type MarketContext struct {
	SPY       *Quote    `json:"spy"`
	QQQ       *Quote    `json:"qqq"`
	VIX       *Quote    `json:"vix"`
	ESFutures *Quote    `json:"es_futures,omitempty"`
	NQFutures *Quote    `json:"nq_futures,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}
