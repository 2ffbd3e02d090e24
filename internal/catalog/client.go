// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/partsproj/parts-mcp/internal/metrics"
)

const userAgent = "parts-mcp/1.0"

// RetryPolicy bounds retries at the catalog-call boundary. It is never
// applied inside row-matching logic.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy retries twice after the initial attempt with
// exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// Client is an HTTP client for the parts-catalog REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      RetryPolicy
	logger     *zap.Logger

	// minInterval throttles outbound requests; the catalog service rate
	// limits aggressively on burst traffic.
	minInterval time.Duration
	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a catalog client. A nil logger defaults to zap.NewNop.
func NewClient(baseURL, apiKey string, timeout time.Duration, retry RetryPolicy, logger *zap.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("catalog base URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
		retry:       retry,
		logger:      logger,
		minInterval: 100 * time.Millisecond,
	}, nil
}

// LookupMPN returns parts whose manufacturer part number matches exactly
// (the service normalizes case and punctuation on its side).
func (c *Client) LookupMPN(ctx context.Context, mpn string) ([]Part, error) {
	return c.search(ctx, "mpn", url.Values{"mpn": {mpn}})
}

// LookupValueFootprint returns parts whose declared value and footprint
// both match.
func (c *Client) LookupValueFootprint(ctx context.Context, value, footprint string) ([]Part, error) {
	return c.search(ctx, "value_footprint", url.Values{"value": {value}, "footprint": {footprint}})
}

// LookupDescription returns parts whose description matches the keyword
// query.
func (c *Client) LookupDescription(ctx context.Context, query string) ([]Part, error) {
	return c.search(ctx, "description", url.Values{"q": {query}})
}

// Ping verifies connectivity and credentials with a minimal search.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.search(ctx, "ping", url.Values{"q": {"ping"}, "limit": {"1"}})
	return err
}

type searchResponse struct {
	Results []Part `json:"results"`
}

func (c *Client) search(ctx context.Context, endpoint string, params url.Values) ([]Part, error) {
	reqURL := c.baseURL + "/parts/search?" + params.Encode()

	var lastErr error
	backoff := c.retry.InitialBackoff
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			if c.retry.MaxBackoff > 0 && backoff > c.retry.MaxBackoff {
				backoff = c.retry.MaxBackoff
			}
		}

		parts, retryable, err := c.doSearch(ctx, endpoint, reqURL)
		if err == nil {
			return parts, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.Warn("catalog request failed, retrying",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return nil, lastErr
}

// doSearch performs one request. The bool result reports whether the
// failure is worth retrying.
func (c *Client) doSearch(ctx context.Context, endpoint, reqURL string) ([]Part, bool, error) {
	c.throttle(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordCatalogCall(endpoint, "network_error", time.Since(start))
		return nil, true, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	metrics.RecordCatalogCall(endpoint, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: catalog returned HTTP %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, fmt.Errorf("%w: authentication rejected (HTTP %d)", ErrUnavailable, resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("%w: catalog returned HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	return parsed.Results, false, nil
}

func (c *Client) throttle(ctx context.Context) {
	c.mu.Lock()
	wait := c.minInterval - time.Since(c.lastRequest)
	c.lastRequest = time.Now().Add(wait)
	c.mu.Unlock()

	if wait > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
}
