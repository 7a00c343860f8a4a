// Package models defines data structures for fiiboard
package models

import (
	"time"
)

// DateKeyLayout is the day-granularity format embedded in cache keys and entries.
const DateKeyLayout = "2006-01-02"

// Quote holds a single FII market snapshot as fetched from the quote API.
// Immutable once fetched; owned by the cache entry that holds it.
type Quote struct {
	Ticker         string  `json:"ticker"`
	Price          float64 `json:"price"`
	DividendYield  float64 `json:"dividend_yield"`  // annualized, percent
	PVP            float64 `json:"p_vp"`            // price / book value per share
	Sector         string  `json:"sector"`
	DailyLiquidity float64 `json:"daily_liquidity"` // average traded value per day
	NetWorth       float64 `json:"net_worth"`       // fund net asset value
}

// CacheEntry is the stored unit of the quote cache: one snapshot per
// calendar day, tagged with whether it was written during the B3 session.
type CacheEntry struct {
	Date         string           `json:"date"` // partition key, DateKeyLayout
	Timestamp    time.Time        `json:"timestamp"`
	TradingHours bool             `json:"trading_hours"`
	Quotes       map[string]Quote `json:"quotes"`
	Count        int              `json:"count"`
}

// NewCacheEntry builds an entry for the given instant, snapshotting the
// ticker→quote map and the trading-hours flag. Date is formatted in now's
// location; callers pass a time already converted to the market timezone.
func NewCacheEntry(quotes map[string]Quote, now time.Time, tradingHours bool) *CacheEntry {
	if quotes == nil {
		quotes = map[string]Quote{}
	}
	return &CacheEntry{
		Date:         now.Format(DateKeyLayout),
		Timestamp:    now,
		TradingHours: tradingHours,
		Quotes:       quotes,
		Count:        len(quotes),
	}
}

// Age returns how long ago the entry was written.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// Merge unions newQuotes into the entry, right-biased: new values overwrite
// existing tickers. Idempotent for unchanged tickers.
func (e *CacheEntry) Merge(newQuotes map[string]Quote) {
	if e.Quotes == nil {
		e.Quotes = map[string]Quote{}
	}
	for ticker, q := range newQuotes {
		e.Quotes[ticker] = q
	}
	e.Count = len(e.Quotes)
}

// TickerLookup partitions a requested ticker set into quotes present in the
// cache and tickers that need fetching. Missing preserves request order.
type TickerLookup struct {
	Found   map[string]Quote `json:"found"`
	Missing []string         `json:"missing"`
}

// CacheStats is a read-only snapshot of the cache's current state.
type CacheStats struct {
	Exists       bool    `json:"exists"`
	Count        int     `json:"count"`
	AgeMinutes   float64 `json:"age_minutes"`
	AgeHours     float64 `json:"age_hours"`
	SizeBytes    int     `json:"size_bytes"` // approximate serialized size
	Valid        bool    `json:"valid"`
	TradingHours bool    `json:"trading_hours"`
	LastUpdate   string  `json:"last_update,omitempty"`
}
