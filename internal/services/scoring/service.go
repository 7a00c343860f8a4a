// Package scoring rates FII quotes against fundamentals thresholds and
// produces the score/recommendation/target triple the allocation engine
// consumes.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/rmfonseca/fiiboard/internal/common"
	"github.com/rmfonseca/fiiboard/internal/interfaces"
	"github.com/rmfonseca/fiiboard/internal/models"
)

// Buy/hold cutoffs on the 0-100 composite, per profile. Conservative
// investors need a stronger case before a buy call.
var buyThresholds = map[models.RiskProfile]int{
	models.RiskConservador: 75,
	models.RiskModerado:    65,
	models.RiskArrojado:    55,
}

const holdThreshold = 45

// Service implements ScoringPipeline. The reasoner is optional: when nil,
// reasoning falls back to a deterministic template.
type Service struct {
	logger   *common.Logger
	reasoner interfaces.ReasoningClient
}

// Option configures the service.
type Option func(*Service)

// WithReasoner attaches a narrative generator.
func WithReasoner(r interfaces.ReasoningClient) Option {
	return func(s *Service) {
		s.reasoner = r
	}
}

// NewService creates a new scoring service.
func NewService(logger *common.Logger, opts ...Option) *Service {
	s := &Service{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score rates a single quote under the given profile.
func (s *Service) Score(ctx context.Context, quote models.Quote, profile models.RiskProfile) (*models.ScoredCandidate, error) {
	yieldScore := scoreDividendYield(quote.DividendYield)
	priceScore := scorePriceToBook(quote.PVP)
	liquidityScore := scoreLiquidity(quote.DailyLiquidity)

	composite := weightedComposite(yieldScore, priceScore, liquidityScore)

	candidate := &models.ScoredCandidate{
		Quote:          quote,
		Score:          float64(composite) / 10,
		Recommendation: recommend(composite, profile),
		Strengths:      detectStrengths(quote),
		Weaknesses:     detectWeaknesses(quote),
	}

	candidate.Reasoning = s.reasoning(ctx, candidate)
	return candidate, nil
}

// ScoreAll rates every quote, preserving input order.
func (s *Service) ScoreAll(ctx context.Context, quotes []models.Quote, profile models.RiskProfile) ([]models.ScoredCandidate, error) {
	candidates := make([]models.ScoredCandidate, 0, len(quotes))
	for _, q := range quotes {
		c, err := s.Score(ctx, q, profile)
		if err != nil {
			return nil, fmt.Errorf("scoring %s failed: %w", q.Ticker, err)
		}
		candidates = append(candidates, *c)
	}
	return candidates, nil
}

func (s *Service) reasoning(ctx context.Context, candidate *models.ScoredCandidate) string {
	if s.reasoner != nil {
		text, err := s.reasoner.GenerateReasoning(ctx, candidate)
		if err == nil && text != "" {
			return text
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", candidate.Ticker).Msg("Reasoning generation failed, using template")
		}
	}
	return templateReasoning(candidate)
}

// templateReasoning builds a short deterministic narrative from the metrics.
func templateReasoning(c *models.ScoredCandidate) string {
	var verdict string
	switch c.Recommendation {
	case models.RecommendationBuy:
		verdict = "Fundamentos favoráveis para compra."
	case models.RecommendationHold:
		verdict = "Fundamentos razoáveis, manter posição."
	default:
		verdict = "Fundamentos fracos, evitar entrada."
	}
	return fmt.Sprintf("%s: DY de %.1f%% a.a. e P/VP de %.2f. %s",
		c.Ticker, c.DividendYield, c.PVP, verdict)
}

func weightedComposite(yieldScore, priceScore, liquidityScore int) int {
	weighted := float64(yieldScore)*35 + float64(priceScore)*35 + float64(liquidityScore)*30
	composite := int(math.Round(weighted / 100))
	if composite < 0 {
		return 0
	}
	if composite > 100 {
		return 100
	}
	return composite
}

func recommend(composite int, profile models.RiskProfile) models.Recommendation {
	threshold, ok := buyThresholds[profile]
	if !ok {
		threshold = buyThresholds[models.RiskModerado]
	}
	switch {
	case composite >= threshold:
		return models.RecommendationBuy
	case composite >= holdThreshold:
		return models.RecommendationHold
	default:
		return models.RecommendationSell
	}
}

func scoreDividendYield(dy float64) int {
	switch {
	case dy >= 12:
		return 100
	case dy >= 8:
		return 75
	case dy >= 6:
		return 50
	case dy >= 4:
		return 25
	default:
		return 0
	}
}

func scorePriceToBook(pvp float64) int {
	if pvp <= 0 {
		// Missing or nonsensical data, not a bargain.
		return 0
	}
	switch {
	case pvp <= 0.85:
		return 100
	case pvp <= 1.0:
		return 85
	case pvp <= 1.1:
		return 60
	case pvp <= 1.3:
		return 35
	default:
		return 10
	}
}

func scoreLiquidity(daily float64) int {
	switch {
	case daily >= 1_000_000:
		return 100
	case daily >= 500_000:
		return 75
	case daily >= 100_000:
		return 50
	case daily > 0:
		return 25
	default:
		return 0
	}
}

func detectStrengths(q models.Quote) []string {
	var strengths []string
	if q.DividendYield >= 10 {
		strengths = append(strengths, fmt.Sprintf("Dividend yield elevado (%.1f%% a.a.)", q.DividendYield))
	}
	if q.PVP > 0 && q.PVP <= 0.95 {
		strengths = append(strengths, fmt.Sprintf("Negociado com desconto sobre o valor patrimonial (P/VP %.2f)", q.PVP))
	}
	if q.DailyLiquidity >= 1_000_000 {
		strengths = append(strengths, "Alta liquidez diária")
	}
	if q.NetWorth >= 1_000_000_000 {
		strengths = append(strengths, "Patrimônio líquido acima de R$1 bilhão")
	}
	return strengths
}

func detectWeaknesses(q models.Quote) []string {
	var weaknesses []string
	if q.DividendYield > 18 {
		weaknesses = append(weaknesses, fmt.Sprintf("Dividend yield possivelmente insustentável (%.1f%% a.a.)", q.DividendYield))
	}
	if q.DividendYield < 6 {
		weaknesses = append(weaknesses, "Dividend yield abaixo da média do setor")
	}
	if q.PVP > 1.2 {
		weaknesses = append(weaknesses, fmt.Sprintf("Negociado com ágio relevante (P/VP %.2f)", q.PVP))
	}
	if q.PVP <= 0 {
		weaknesses = append(weaknesses, "P/VP indisponível")
	}
	if q.DailyLiquidity < 100_000 {
		weaknesses = append(weaknesses, "Liquidez diária baixa")
	}
	return weaknesses
}

// Ensure Service implements ScoringPipeline
var _ interfaces.ScoringPipeline = (*Service)(nil)
