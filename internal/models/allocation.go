// Package models defines data structures for fiiboard
package models

import (
	"strings"
	"time"
)

// Recommendation is the tri-state opinion attached to a scored security.
type Recommendation string

const (
	RecommendationBuy  Recommendation = "buy"
	RecommendationHold Recommendation = "hold"
	RecommendationSell Recommendation = "sell"
)

// RiskProfile is the investor-declared tolerance tier driving
// per-position concentration caps.
type RiskProfile string

const (
	RiskConservador RiskProfile = "conservador"
	RiskModerado    RiskProfile = "moderado"
	RiskArrojado    RiskProfile = "arrojado"
)

// ParseRiskProfile normalizes a label, falling back to moderado for
// anything outside the three recognized tiers.
func ParseRiskProfile(s string) RiskProfile {
	switch RiskProfile(strings.ToLower(strings.TrimSpace(s))) {
	case RiskConservador:
		return RiskConservador
	case RiskArrojado:
		return RiskArrojado
	default:
		return RiskModerado
	}
}

// MaxPositionPct returns the hard per-position ceiling for the profile.
// Cautious investors must not concentrate in a single position no matter
// how attractive it scores.
func (p RiskProfile) MaxPositionPct() float64 {
	switch p {
	case RiskConservador:
		return 15
	case RiskArrojado:
		return 30
	default:
		return 25
	}
}

// ScoredCandidate is a Quote plus the scoring pipeline's opinion. Derived
// per allocation run, never persisted.
type ScoredCandidate struct {
	Quote
	Score               float64        `json:"score"` // 0–10
	Recommendation      Recommendation `json:"recommendation"`
	TargetAllocationPct *float64       `json:"target_allocation_pct,omitempty"` // nil = no hint
	Reasoning           string         `json:"reasoning,omitempty"`
	Strengths           []string       `json:"strengths,omitempty"`
	Weaknesses          []string       `json:"weaknesses,omitempty"`
}

// AllocationLine is one accepted candidate with its sized position.
type AllocationLine struct {
	Ticker            string   `json:"ticker"`
	Price             float64  `json:"price"`
	DividendYield     float64  `json:"dividend_yield"`
	Sector            string   `json:"sector"`
	AllocatedPct      float64  `json:"allocated_pct"`
	RecommendedAmount float64  `json:"recommended_amount"` // nominal cash before flooring
	Quantity          int64    `json:"quantity"`           // whole shares
	InvestedAmount    float64  `json:"invested_amount"`    // quantity × price
	Score             float64  `json:"score"`
	Reasoning         string   `json:"reasoning,omitempty"`
	Strengths         []string `json:"strengths,omitempty"`
	Weaknesses        []string `json:"weaknesses,omitempty"`
}

// AllocationSummary aggregates an allocation run.
type AllocationSummary struct {
	TotalBudget          float64 `json:"total_budget"`
	TotalInvested        float64 `json:"total_invested"`
	Remaining            float64 `json:"remaining"`
	ProjectedAnnualYield float64 `json:"projected_annual_yield"`
	DiversificationScore int     `json:"diversification_score"` // min(15·lines, 100), coarse heuristic
	Automated            bool    `json:"automated"`             // algorithmically derived, not advice
}

// AllocationResult is the full outcome of one allocation run. Lines are
// ordered by descending score among accepted candidates.
type AllocationResult struct {
	ID          string            `json:"id"`
	GeneratedAt time.Time         `json:"generated_at"`
	RiskProfile RiskProfile       `json:"risk_profile"`
	Lines       []AllocationLine  `json:"lines"`
	Summary     AllocationSummary `json:"summary"`
}
