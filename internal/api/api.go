package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"nifty-signals/internal/logger"
)

// Client is a thin HTTP client with shared defaults, retries and optional
// request logging.
type Client struct {
	rc         *resty.Client
	useLogging bool
}

func (c *Client) logDebug(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Debug(ctx, msg, args...)
	}
}

func (c *Client) logWarn(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Warn(ctx, msg, args...)
	}
}

// ClientOption configures the API client
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.rc.SetTimeout(timeout)
	}
}

// WithBaseURL sets the base URL for all requests
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.rc.SetBaseURL(baseURL)
	}
}

// WithHeader sets a default header for all requests
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.rc.SetHeader(key, value)
	}
}

// WithHeaders sets several default headers
func WithHeaders(h map[string]string) ClientOption {
	return func(c *Client) {
		c.rc.SetHeaders(h)
	}
}

// WithRetry retries failed, throttled (429) and 5xx requests with backoff
// between wait and maxWait. A Retry-After header on a 429 takes precedence.
func WithRetry(count int, wait, maxWait time.Duration) ClientOption {
	return func(c *Client) {
		c.rc.SetRetryCount(count).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(maxWait)
	}
}

// WithLogging enables logging for the API client
func WithLogging(enabled bool) ClientOption {
	return func(c *Client) {
		c.useLogging = enabled
	}
}

// NewClient creates a new API client with the given options
func NewClient(opts ...ClientOption) *Client {
	rc := resty.New().
		SetTimeout(30 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
		}).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
				if s, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil && s > 0 {
					return time.Duration(s) * time.Second, nil
				}
			}
			return 0, nil
		})

	client := &Client{rc: rc}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// StatusError is returned for responses with a 4xx or 5xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, body)
}

// Get performs a GET request against path (relative to the base URL when one
// is set) with the given query parameters.
func (c *Client) Get(ctx context.Context, path string, query map[string]string, headers ...map[string]string) (*Response, error) {
	req := c.rc.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if len(headers) > 0 {
		req.SetHeaders(headers[0])
	}

	c.logDebug(ctx, "HTTP Request", "method", http.MethodGet, "path", path)
	resp, err := req.Get(path)
	if err != nil {
		c.logWarn(ctx, "HTTP request failed", "path", path, "error", err)
		return nil, errors.Wrapf(err, "GET %s", path)
	}

	c.logDebug(ctx, "HTTP Response",
		"path", path,
		"status", resp.StatusCode(),
		"duration", resp.Time(),
		"attempts", resp.Request.Attempt,
		"bodySize", len(resp.Body()))

	if resp.IsError() {
		c.logWarn(ctx, "HTTP error response", "path", path, "status", resp.StatusCode())
		return nil, errors.WithStack(&StatusError{StatusCode: resp.StatusCode(), Body: string(resp.Body())})
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Headers:    resp.Header(),
	}, nil
}

// ParseJSON parses the response body as JSON into the given struct
func (r *Response) ParseJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "failed to parse JSON response")
	}
	return nil
}

// String returns the response body as a string
func (r *Response) String() string {
	return string(r.Body)
}

// BrowserHeaders returns common browser headers to mimic a real browser request
func BrowserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
}

// YahooFinanceHeaders returns headers for the Yahoo Finance chart API
func YahooFinanceHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "https://finance.yahoo.com/",
	}
}
