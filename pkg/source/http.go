package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultUserAgent = "entlink/1.0 (https://github.com/entlink/entlink)"

// HTTPClient bundles the shared HTTP behavior of the adapters: a bounded
// response size, a polite User-Agent and uniform classification of failures
// into definitive misses versus retryable transport errors.
type HTTPClient struct {
	client    *http.Client
	userAgent string
}

// HTTPClientParams contains configuration for creating an HTTPClient.
type HTTPClientParams struct {
	Timeout   time.Duration
	UserAgent string
}

// NewHTTPClient creates a client for source adapters. A zero Timeout
// defaults to 15 seconds.
func NewHTTPClient(params HTTPClientParams) *HTTPClient {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	userAgent := params.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPClient{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// GetJSON issues a GET against base with the given query values and decodes
// the response body into out. Network failures and 5xx statuses come back
// as TransientError; a 404 comes back as ErrNotFound.
func (c *HTTPClient) GetJSON(ctx context.Context, base string, query url.Values, out any) error {
	endpoint := base
	if len(query) > 0 {
		endpoint = base + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", base, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests:
		return &TransientError{Err: fmt.Errorf("%s returned status %d", base, res.StatusCode)}
	case res.StatusCode != http.StatusOK:
		return fmt.Errorf("%s returned status %d", base, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return &TransientError{Err: fmt.Errorf("failed to read response from %s: %w", base, err)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", base, err)
	}
	return nil
}
