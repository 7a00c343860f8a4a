package interfaces

import (
	"context"

	"github.com/rmfonseca/fiiboard/internal/models"
)

// QuoteFetcher fetches fresh FII quotes from an external source. Used by the
// cache's forced refresh; fetch errors propagate to the caller.
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, tickers []string) ([]models.Quote, error)
}

// ReasoningClient generates a short narrative for a scored candidate.
// Implementations may be rate-limited; a nil client means template fallback.
type ReasoningClient interface {
	GenerateReasoning(ctx context.Context, candidate *models.ScoredCandidate) (string, error)
	Close() error
}
