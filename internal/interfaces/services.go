package interfaces

import (
	"context"
	"time"

	"github.com/rmfonseca/fiiboard/internal/models"
)

// QuoteCacheService answers "do we already have trustworthy quotes for
// today?" and bounds how long fetched quotes are kept.
//
// Errors returned by read/write operations are storage failures; a cache
// miss (absent, stale, or corrupt entry) is a nil entry with a nil error.
type QuoteCacheService interface {
	// KeyFor derives the storage key for the calendar day of t.
	KeyFor(t time.Time) string

	// Load returns today's entry, or nil when absent or no longer valid.
	// Stale and corrupt entries are deleted on the way out.
	Load(ctx context.Context) (*models.CacheEntry, error)

	// Save wraps quotes in a fresh entry for today, writes it, then prunes
	// entries outside the retention window.
	Save(ctx context.Context, quotes map[string]models.Quote) error

	// Merge unions quotes into today's entry (right-biased) and saves.
	// The only write path for incremental updates.
	Merge(ctx context.Context, quotes map[string]models.Quote) error

	// GetForTickers partitions the requested tickers into found quotes and
	// tickers missing from today's entry, using a single load.
	GetForTickers(ctx context.Context, tickers []string) (*models.TickerLookup, error)

	// PruneOld deletes entries whose embedded date is strictly older than
	// retentionDays. Non-positive retentionDays falls back to the service's
	// configured retention. Returns the number removed.
	PruneOld(ctx context.Context, retentionDays int) (int, error)

	// ClearAll deletes every entry under the cache namespace.
	ClearAll(ctx context.Context) (int, error)

	// Stats reports the cache's current state without mutating it.
	Stats(ctx context.Context) (*models.CacheStats, error)

	// ForceRefresh deletes today's entry unconditionally, then fetches.
	// Fetch errors propagate; the deletion has already happened either way.
	// Callers are expected to Save or Merge the returned quotes.
	ForceRefresh(ctx context.Context, fetcher QuoteFetcher, tickers []string) ([]models.Quote, error)
}

// ScoringPipeline produces the score/recommendation/target triple for one
// security under an investor profile.
type ScoringPipeline interface {
	Score(ctx context.Context, quote models.Quote, profile models.RiskProfile) (*models.ScoredCandidate, error)

	// ScoreAll rates every quote, preserving input order.
	ScoreAll(ctx context.Context, quotes []models.Quote, profile models.RiskProfile) ([]models.ScoredCandidate, error)
}

// AllocationService converts scored candidates into a budget-respecting
// portfolio. Deterministic greedy heuristic, not an optimizer.
type AllocationService interface {
	Allocate(candidates []models.ScoredCandidate, budget float64, profile models.RiskProfile) *models.AllocationResult
}
