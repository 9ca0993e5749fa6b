package yahoo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rickgao/market-etl/internal/fetch"
)

const (
	// DefaultBaseURL serves the chart and quoteSummary APIs.
	DefaultBaseURL = "https://query2.finance.yahoo.com"

	// DefaultCookieURL hands out the session cookie the crumb is bound to.
	DefaultCookieURL = "https://fc.yahoo.com"
)

// ErrNoData is returned when Yahoo has nothing for a symbol.
var ErrNoData = errors.New("no data")

// Client is a Yahoo Finance client. The underlying fetch client must keep
// cookies (fetch.WithCookieJar) for crumb authentication to work.
type Client struct {
	http      *fetch.Client
	baseURL   string
	cookieURL string
	logger    *slog.Logger

	mu    sync.Mutex
	crumb string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithCookieURL overrides the cookie bootstrap URL.
func WithCookieURL(u string) Option {
	return func(c *Client) {
		c.cookieURL = u
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new Yahoo Finance client on top of httpClient.
func NewClient(httpClient *fetch.Client, opts ...Option) *Client {
	c := &Client{
		http:      httpClient,
		baseURL:   DefaultBaseURL,
		cookieURL: DefaultCookieURL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getCrumb returns the cached crumb, fetching a new one when needed.
func (c *Client) getCrumb(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.crumb != "" {
		return c.crumb, nil
	}

	// The cookie endpoint answers 404 but still sets the session cookie.
	if _, err := c.http.Get(ctx, c.cookieURL, nil); err != nil && fetch.StatusCode(err) == 0 {
		return "", fmt.Errorf("get cookie: %w", err)
	}

	body, err := c.http.Get(ctx, c.baseURL+"/v1/test/getcrumb", nil)
	if err != nil {
		return "", fmt.Errorf("get crumb: %w", err)
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" || strings.Contains(crumb, "<") {
		return "", fmt.Errorf("get crumb: unexpected response %q", truncate(crumb, 64))
	}

	c.crumb = crumb
	c.logger.Debug("obtained yahoo crumb")
	return crumb, nil
}

func (c *Client) resetCrumb() {
	c.mu.Lock()
	c.crumb = ""
	c.mu.Unlock()
}

// getJSONWithCrumb performs an authenticated GET. A 401 or 403 invalidates
// the crumb and the call is tried once more with a fresh one.
func (c *Client) getJSONWithCrumb(ctx context.Context, path string, query url.Values, result any) error {
	for attempt := 0; attempt < 2; attempt++ {
		crumb, err := c.getCrumb(ctx)
		if err != nil {
			return err
		}

		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("crumb", crumb)

		err = c.http.GetJSON(ctx, c.baseURL+path, q, result)
		if err == nil {
			return nil
		}

		status := fetch.StatusCode(err)
		if status != http.StatusUnauthorized && status != http.StatusForbidden {
			return err
		}
		c.logger.Debug("yahoo crumb rejected, refreshing", "status", status)
		c.resetCrumb()
		if attempt == 1 {
			return err
		}
	}
	return nil
}

// apiError is the error object embedded in Yahoo responses.
type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *apiError) err() error {
	if e == nil {
		return nil
	}
	if e.Code == "Not Found" {
		return fmt.Errorf("%w: %s", ErrNoData, e.Description)
	}
	return fmt.Errorf("yahoo error %s: %s", e.Code, e.Description)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
