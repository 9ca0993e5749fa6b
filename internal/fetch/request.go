package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPError represents a non-2xx response from a data source.
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d from %s: %s", e.StatusCode, e.URL, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// Response is a fully read response body with its headers.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Request describes one outgoing call.
type Request struct {
	Method      string
	URL         string
	Query       url.Values
	Body        []byte
	ContentType string
	Header      http.Header

	// NoRetry sends the request once. Callers that run their own retry
	// policy set it.
	NoRetry bool
}

// doRequest performs a single HTTP request.
func (c *Client) doRequest(ctx context.Context, r Request) (*Response, error) {
	fullURL := r.URL
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range c.headers {
		req.Header[k] = v
	}
	for k, v := range r.Header {
		req.Header[k] = v
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			URL:        r.URL,
			Message:    http.StatusText(resp.StatusCode),
			Body:       data,
		}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Do performs a request with exponential backoff retry.
// Transport failures and retryable statuses are retried; other statuses
// return immediately.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	if r.Method == "" {
		r.Method = http.MethodGet
	}

	var lastErr error
	backoff := c.retryBackoff
	maxRetries := c.maxRetries
	if r.NoRetry {
		maxRetries = 0
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff
			if backoff > 0 {
				jitter = backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			}
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"url", r.URL,
				"error", lastErr,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		resp, err := c.doRequest(ctx, r)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) && !httpErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Get performs a GET request with retries and returns the raw body.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Query: query})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetJSON performs a GET request and unmarshals the JSON body into result.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, result any) error {
	resp, err := c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    rawURL,
		Query:  query,
		Header: http.Header{"Accept": []string{"application/json"}},
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// GetText performs a GET request and returns the body decoded to UTF-8
// according to the response charset.
func (c *Client) GetText(ctx context.Context, rawURL string, query url.Values) (string, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Query: query})
	if err != nil {
		return "", err
	}
	return DecodeBody(resp.Body, resp.Header.Get("Content-Type"))
}

// Post sends body with the given content type and returns the raw response body.
func (c *Client) Post(ctx context.Context, rawURL, contentType string, body []byte) ([]byte, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, Body: body, ContentType: contentType})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
