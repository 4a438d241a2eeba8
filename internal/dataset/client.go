package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client downloads dataset archives from the hub API with basic auth and
// retry logic.
type Client struct {
	baseURL    string
	username   string
	key        string
	httpClient *http.Client
	baseDelay  time.Duration
}

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string // Retry-After header value for 429s
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures Client behavior.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBackoff sets the delay before the first retry. Later retries double it.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// NewClient creates a Client. Empty credentials send no Authorization
// header, which works for public datasets on mirrors that allow it.
func NewClient(baseURL, username, key string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		username:   username,
		key:        key,
		httpClient: &http.Client{},
		baseDelay:  time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const maxRetries = 3

// Download streams the archive of owner/name into w. Retries on 429 (with
// Retry-After) and 5xx (exponential backoff). Returns the byte count.
// A retry is only attempted before any body bytes reach w.
func (c *Client) Download(ctx context.Context, owner, name string, w io.Writer) (int64, error) {
	fullURL := c.baseURL + "/datasets/download/" + url.PathEscape(owner) + "/" + url.PathEscape(name)

	var lastErr *APIError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoffDelay(attempt, lastErr)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return 0, ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return 0, err
		}
		if c.username != "" {
			req.SetBasicAuth(c.username, c.key)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n, err := io.Copy(w, resp.Body)
			resp.Body.Close()
			return n, err
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()

		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}

		if resp.StatusCode == http.StatusTooManyRequests {
			apiErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = apiErr
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = apiErr
			continue
		}

		return 0, apiErr
	}

	return 0, lastErr
}

// backoffDelay returns the wait duration before a retry attempt.
func (c *Client) backoffDelay(attempt int, lastErr *APIError) time.Duration {
	if lastErr != nil && lastErr.StatusCode == http.StatusTooManyRequests && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return c.baseDelay * time.Duration(1<<(attempt-1))
}
