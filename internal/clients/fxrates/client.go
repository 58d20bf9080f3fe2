// Package fxrates provides a client for the open exchange-rate API.
package fxrates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/interfaces"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

const (
	DefaultBaseURL   = "https://open.er-api.com/v6"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 2 // requests per second
)

// Client fetches published exchange rates over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

var _ interfaces.RatesClient = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
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

// NewClient creates a new rates client. The API key is optional for the
// default provider's free tier.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
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

// APIError represents a rates API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rates API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// latestResponse is the provider's /latest payload. Rates are quoted as
// units of foreign currency per one unit of base.
type latestResponse struct {
	Result   string             `json:"result"`
	BaseCode string             `json:"base_code"`
	Rates    map[string]float64 `json:"rates"`
}

// FetchLatest retrieves the current rate table for base and converts it to
// the canonical orientation: units of base currency per one foreign unit.
func (c *Client) FetchLatest(ctx context.Context, base string) (*models.ExchangeRateTable, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	base = strings.ToUpper(strings.TrimSpace(base))
	path := fmt.Sprintf("/latest/%s", base)
	reqURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug().Str("url", reqURL).Msg("Rates API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	var payload latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if payload.Result != "" && payload.Result != "success" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("provider result '%s'", payload.Result),
			Endpoint:   path,
		}
	}

	table := &models.ExchangeRateTable{
		Base:      base,
		Rates:     make(map[string]decimal.Decimal, len(payload.Rates)),
		UpdatedAt: time.Now(),
	}
	one := decimal.NewFromInt(1)
	for code, perBase := range payload.Rates {
		if perBase <= 0 {
			continue
		}
		// Invert: the provider quotes foreign-per-base, the table stores
		// base-per-foreign so conversion is a single multiply.
		table.Rates[strings.ToUpper(code)] = one.Div(decimal.NewFromFloat(perBase))
	}
	table.Rates[base] = one

	c.logger.Debug().
		Str("base", base).
		Int("currencies", len(table.Rates)).
		Msg("Rate table fetched")

	return table, nil
}
