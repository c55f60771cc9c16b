package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/earnx/earnx/pkg/logger"
)

const (
	requestTimeout = 30 * time.Second
	maxRetries     = 3
	headerAPIKey   = "X-API-Key"
	userAgent      = "EarnX-Backend/1.0"
)

// Client talks to the off-chain document verification and analytics API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      func() backoff.BackOff
	logger     *logger.Logger
}

// NewClient creates a verification API client. apiKey may be empty.
func NewClient(baseURL, apiKey string, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		retry: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = time.Second
			bo.Multiplier = 2
			bo.RandomizationFactor = 0
			bo.MaxElapsedTime = 0
			return backoff.WithMaxRetries(bo, maxRetries)
		},
		logger: log.WithField("component", "verification"),
	}
}

// SetRetryInterval overrides the first 429 backoff step (useful for testing)
func (c *Client) SetRetryInterval(d time.Duration) {
	c.retry = func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = d
		bo.RandomizationFactor = 0
		bo.MaxElapsedTime = 0
		return backoff.WithMaxRetries(bo, maxRetries)
	}
}

// BaseURL returns the configured endpoint
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health calls GET /health
func (c *Client) Health(ctx context.Context) (*ServiceStatus, error) {
	var out ServiceStatus
	if _, err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping calls GET /verification, the keep-alive endpoint
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := c.do(ctx, http.MethodGet, "/verification", nil, nil); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Status calls GET /api/v1/verification
func (c *Client) Status(ctx context.Context) (*ServiceStatus, error) {
	var out ServiceStatus
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/verification", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Test calls GET /api/v1/verification/test
func (c *Client) Test(ctx context.Context) (*ServiceStatus, error) {
	var out ServiceStatus
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/verification/test", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyMinimal calls POST /api/v1/verification/verify-minimal
func (c *Client) VerifyMinimal(ctx context.Context, req MinimalRequest) (*Result, error) {
	return c.verify(ctx, "/api/v1/verification/verify-minimal", req)
}

// VerifyDocuments calls POST /api/v1/verification/verify-documents
func (c *Client) VerifyDocuments(ctx context.Context, req DocumentsRequest) (*Result, error) {
	return c.verify(ctx, "/api/v1/verification/verify-documents", req)
}

// AnalyticsDashboard calls GET /api/v1/analytics/dashboard
func (c *Client) AnalyticsDashboard(ctx context.Context) (*Dashboard, error) {
	var out Dashboard
	raw, err := c.do(ctx, http.MethodGet, "/api/v1/analytics/dashboard", nil, &out)
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return &out, nil
}

func (c *Client) verify(ctx context.Context, path string, payload interface{}) (*Result, error) {
	var out Result
	raw, err := c.do(ctx, http.MethodPost, path, payload, &out)
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return &out, nil
}

// do performs a request, retrying 429 responses with exponential backoff,
// and decodes a JSON body into dest when dest is non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, dest interface{}) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var respBody []byte
	attempt := 0
	operation := func() error {
		attempt++
		b, err := c.send(ctx, method, path, body)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
				c.logger.Warn("rate limited, retrying", "path", path, "attempt", attempt)
				return err
			}
			return backoff.Permanent(err)
		}
		respBody = b
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.retry(), ctx)); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			c.logger.Error("rate limit exhausted", "path", path, "attempts", attempt)
			return nil, &RateLimitError{RetryAfter: time.Minute, Message: "verification API rate limit exceeded after retries"}
		}
		return nil, err
	}

	if dest != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, dest); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return respBody, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(headerAPIKey, c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("API response", "method", method, "path", path, "status_code", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
