// Package gemini provides a client for the Google Gemini API used to
// generate short investment narratives for scored candidates.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/rmfonseca/fiiboard/internal/common"
	"github.com/rmfonseca/fiiboard/internal/interfaces"
	"github.com/rmfonseca/fiiboard/internal/models"
)

const DefaultModel = "gemini-3-flash-preview"

// Client implements the ReasoningClient interface
type Client struct {
	client *genai.Client
	model  string
	logger *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client: genaiClient,
		model:  DefaultModel,
		logger: common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Close closes the client
func (c *Client) Close() error {
	// The genai client doesn't have a Close method
	return nil
}

// GenerateReasoning generates a short analysis narrative for a candidate.
func (c *Client) GenerateReasoning(ctx context.Context, candidate *models.ScoredCandidate) (string, error) {
	c.logger.Debug().Str("model", c.model).Str("ticker", candidate.Ticker).Msg("Generating reasoning")

	contents := genai.Text(buildReasoningPrompt(candidate))
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractTextFromResponse(result)
}

func buildReasoningPrompt(candidate *models.ScoredCandidate) string {
	var sb strings.Builder
	sb.WriteString("Você é um analista de fundos imobiliários brasileiros (FIIs).\n")
	sb.WriteString("Escreva um parágrafo curto, em português, justificando a recomendação abaixo.\n")
	sb.WriteString("Não invente dados além dos fornecidos.\n\n")
	fmt.Fprintf(&sb, "Ticker: %s\n", candidate.Ticker)
	fmt.Fprintf(&sb, "Setor: %s\n", candidate.Sector)
	fmt.Fprintf(&sb, "Preço: R$%.2f\n", candidate.Price)
	fmt.Fprintf(&sb, "Dividend yield: %.2f%% a.a.\n", candidate.DividendYield)
	fmt.Fprintf(&sb, "P/VP: %.2f\n", candidate.PVP)
	fmt.Fprintf(&sb, "Nota: %.1f/10\n", candidate.Score)
	fmt.Fprintf(&sb, "Recomendação: %s\n", candidate.Recommendation)
	return sb.String()
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	return text, nil
}

// Ensure Client implements ReasoningClient
var _ interfaces.ReasoningClient = (*Client)(nil)
