// Package allocation converts scored FII candidates into a concrete,
// budget-respecting purchase plan. Deterministic greedy heuristic by design,
// not a portfolio optimizer.
package allocation

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmfonseca/fiiboard/internal/common"
	"github.com/rmfonseca/fiiboard/internal/interfaces"
	"github.com/rmfonseca/fiiboard/internal/models"
)

// DefaultMaxCandidates caps how many ranked candidates are sized.
const DefaultMaxCandidates = 6

// Base percentage seed for candidates without a target-allocation hint:
// 20% at rank 0, decreasing 2 points per rank position.
const (
	defaultBasePct = 20
	basePctStep    = 2
)

var oneHundred = decimal.NewFromInt(100)

// Service implements AllocationService.
type Service struct {
	logger        *common.Logger
	maxCandidates int
	now           func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithMaxCandidates overrides the top-N cap.
func WithMaxCandidates(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxCandidates = n
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new allocation service.
func NewService(logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		logger:        logger,
		maxCandidates: DefaultMaxCandidates,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allocate ranks the candidates and sizes whole-share positions under the
// budget, respecting the risk profile's per-position ceiling.
//
// Single greedy pass in ranked order. Flooring remainders accumulate into
// the remaining bucket rather than being redistributed to later candidates;
// this conservatism is intentional and covered by tests.
func (s *Service) Allocate(candidates []models.ScoredCandidate, budget float64, profile models.RiskProfile) *models.AllocationResult {
	result := &models.AllocationResult{
		ID:          uuid.New().String(),
		GeneratedAt: s.now(),
		RiskProfile: profile,
		Lines:       []models.AllocationLine{},
		Summary: models.AllocationSummary{
			TotalBudget: budget,
			Remaining:   budget,
			Automated:   true,
		},
	}
	if budget <= 0 || len(candidates) == 0 {
		return result
	}

	ranked := s.rank(candidates)

	totalBudget := decimal.NewFromFloat(budget)
	remaining := totalBudget
	maxPct := decimal.NewFromFloat(profile.MaxPositionPct())

	invested := decimal.Zero
	yield := decimal.Zero

	for rank, cand := range ranked {
		price := decimal.NewFromFloat(cand.Price)
		if price.LessThanOrEqual(decimal.Zero) {
			s.logger.Warn().Str("ticker", cand.Ticker).Msg("Skipping candidate with non-positive price")
			continue
		}

		// Base percentage: the candidate's own hint, else the rank-seeded default.
		var pct decimal.Decimal
		if cand.TargetAllocationPct != nil {
			pct = decimal.NewFromFloat(*cand.TargetAllocationPct)
		} else {
			pct = decimal.NewFromInt(int64(defaultBasePct - basePctStep*rank))
		}
		if pct.LessThanOrEqual(decimal.Zero) {
			continue
		}

		// Never allocate more than what is left, then apply the profile ceiling.
		remainingShare := remaining.Div(totalBudget).Mul(oneHundred)
		pct = decimal.Min(pct, remainingShare, maxPct)

		cash := totalBudget.Mul(pct).Div(oneHundred)
		quantity := cash.Div(price).Floor().IntPart()
		if quantity <= 0 {
			// Price exceeds the clamped cash amount: no line, no budget consumed.
			continue
		}

		lineInvested := price.Mul(decimal.NewFromInt(quantity))
		remaining = remaining.Sub(lineInvested)
		invested = invested.Add(lineInvested)
		yield = yield.Add(lineInvested.Mul(decimal.NewFromFloat(cand.DividendYield)).Div(oneHundred))

		result.Lines = append(result.Lines, models.AllocationLine{
			Ticker:            cand.Ticker,
			Price:             cand.Price,
			DividendYield:     cand.DividendYield,
			Sector:            cand.Sector,
			AllocatedPct:      pct.InexactFloat64(),
			RecommendedAmount: cash.InexactFloat64(),
			Quantity:          quantity,
			InvestedAmount:    lineInvested.InexactFloat64(),
			Score:             cand.Score,
			Reasoning:         cand.Reasoning,
			Strengths:         cand.Strengths,
			Weaknesses:        cand.Weaknesses,
		})
	}

	result.Summary.TotalInvested = invested.InexactFloat64()
	result.Summary.Remaining = totalBudget.Sub(invested).InexactFloat64()
	result.Summary.ProjectedAnnualYield = yield.InexactFloat64()
	result.Summary.DiversificationScore = diversificationScore(len(result.Lines))

	s.logger.Info().
		Int("candidates", len(candidates)).
		Int("lines", len(result.Lines)).
		Float64("invested", result.Summary.TotalInvested).
		Str("risk_profile", string(profile)).
		Msg("Allocation computed")

	return result
}

// rank filters to buy-recommended candidates, sorts descending by score
// (stable, so input order breaks ties) and caps the list at top-N.
func (s *Service) rank(candidates []models.ScoredCandidate) []models.ScoredCandidate {
	ranked := make([]models.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Recommendation == models.RecommendationBuy {
			ranked = append(ranked, c)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > s.maxCandidates {
		ranked = ranked[:s.maxCandidates]
	}
	return ranked
}

// diversificationScore is a coarse heuristic: 15 points per position,
// capped at 100. Not a statistical measure.
func diversificationScore(lines int) int {
	score := lines * 15
	if score > 100 {
		return 100
	}
	return score
}

// Ensure Service implements AllocationService
var _ interfaces.AllocationService = (*Service)(nil)
