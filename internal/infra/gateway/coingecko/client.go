package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/earnx/earnx/pkg/logger"
)

const (
	baseURL             = "https://api.coingecko.com/api/v3"
	headerAPIKey        = "x-cg-demo-api-key"
	requestTimeout      = 10 * time.Second
	rateLimitRetryAfter = 60 * time.Second
)

// Client represents a CoinGecko API client
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

// NewClient creates a new CoinGecko API client
func NewClient(apiKey string, log *logger.Logger) *Client {
	return NewClientWithBaseURL(apiKey, baseURL, log)
}

// NewClientWithBaseURL creates a client against a custom endpoint
func NewClientWithBaseURL(apiKey, base string, log *logger.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		baseURL: strings.TrimRight(base, "/"),
		logger:  log.WithField("component", "coingecko"),
	}
}

// GetCurrentPrices fetches current USD prices for multiple assets
// assetIDs: coingecko IDs (e.g., "bitcoin", "ethereum", "usd-coin")
func (c *Client) GetCurrentPrices(ctx context.Context, assetIDs []string) (map[string]decimal.Decimal, error) {
	if len(assetIDs) == 0 {
		return make(map[string]decimal.Decimal), nil
	}

	params := url.Values{}
	params.Set("ids", strings.Join(assetIDs, ","))
	params.Set("vs_currencies", "usd")
	params.Set("precision", "8")

	reqURL := fmt.Sprintf("%s/simple/price?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set(headerAPIKey, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{
			RetryAfter: rateLimitRetryAfter,
			Message:    "CoinGecko API rate limit exceeded",
		}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	// Prices are decoded as exact decimals, never through float64
	var rawPrices map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&rawPrices); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result := make(map[string]decimal.Decimal, len(rawPrices))
	for assetID, currencies := range rawPrices {
		usdPrice, ok := currencies["usd"]
		if !ok {
			continue
		}
		result[assetID] = usdPrice
	}

	c.logger.WithDuration(time.Since(start)).Debug("prices fetched", "requested", len(assetIDs), "received", len(result))
	return result, nil
}

// RateLimitError represents a rate limit error from CoinGecko API
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
