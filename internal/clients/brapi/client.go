// Package brapi provides a client for the brapi.dev market data API.
package brapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rmfonseca/fiiboard/internal/common"
	"github.com/rmfonseca/fiiboard/internal/interfaces"
	"github.com/rmfonseca/fiiboard/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" || s == "-" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://brapi.dev/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client implements the QuoteFetcher interface against brapi.dev.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new brapi client. The token may be empty for the
// unauthenticated free tier.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("brapi API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// quoteResponse mirrors the /quote payload shape.
type quoteResponse struct {
	Results []quoteResult `json:"results"`
}

type quoteResult struct {
	Symbol             string      `json:"symbol"`
	RegularMarketPrice flexFloat64 `json:"regularMarketPrice"`
	DividendYield      flexFloat64 `json:"dividendYield"`
	PriceToBook        flexFloat64 `json:"priceToBook"`
	Sector             string      `json:"sector"`
	AverageDailyVolume flexFloat64 `json:"averageDailyVolume10Day"`
	NetWorth           flexFloat64 `json:"netWorth"`
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	if c.token != "" {
		params.Set("token", c.token)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("brapi API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// FetchQuotes retrieves current quotes for the given tickers in one request.
// Tickers absent from the response are simply not returned; the caller
// decides whether a partial result is acceptable.
func (c *Client) FetchQuotes(ctx context.Context, tickers []string) ([]models.Quote, error) {
	if len(tickers) == 0 {
		return []models.Quote{}, nil
	}

	params := url.Values{}
	params.Set("fundamental", "true")

	path := "/quote/" + strings.Join(tickers, ",")

	var payload quoteResponse
	if err := c.get(ctx, path, params, &payload); err != nil {
		return nil, err
	}

	quotes := make([]models.Quote, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.Symbol == "" {
			continue
		}
		quotes = append(quotes, models.Quote{
			Ticker:         r.Symbol,
			Price:          float64(r.RegularMarketPrice),
			DividendYield:  float64(r.DividendYield),
			PVP:            float64(r.PriceToBook),
			Sector:         r.Sector,
			DailyLiquidity: float64(r.AverageDailyVolume),
			NetWorth:       float64(r.NetWorth),
		})
	}

	c.logger.Debug().
		Int("requested", len(tickers)).
		Int("returned", len(quotes)).
		Msg("Quotes fetched")

	return quotes, nil
}

// Ensure Client implements QuoteFetcher
var _ interfaces.QuoteFetcher = (*Client)(nil)
