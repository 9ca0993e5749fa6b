package csrc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rickgao/market-etl/internal/fetch"
)

// Disclosure site endpoints.
const (
	DefaultBaseURL = "http://eid.csrc.gov.cn/fund/disclose"
	searchPath     = "/advanced_search_xbrl.do"
	viewPath       = "/instance_html_view.do"
)

// Search filters for QDII purchase suspension announcements.
const (
	FundTypeQDII      = "6020-6050"
	ReportTypeSuspend = "FC190"
)

// ErrSearchFailed is returned when not a single search page could be
// fetched, so the number of announcements is unknown.
var ErrSearchFailed = errors.New("announcement search failed")

// Announcement is one row of the XBRL search result.
type Announcement struct {
	UploadInfoID   string `json:"uploadInfoId"`
	FundCode       string `json:"fundCode"`
	FundShortName  string `json:"fundShortName"`
	OrganName      string `json:"organName"`
	ReportDesp     string `json:"reportDesp"`
	ReportSendDate string `json:"reportSendDate"`
}

type searchResponse struct {
	Success      *bool          `json:"success"`
	Message      string         `json:"message"`
	TotalRecords int            `json:"iTotalRecords"`
	Data         []Announcement `json:"aaData"`
}

// Client talks to the disclosure site.
type Client struct {
	http      *fetch.Client
	baseURL   string
	logger    *slog.Logger
	pageSize  int
	pageDelay time.Duration

	retryInitial  time.Duration
	retryAttempts int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the disclosure site root.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPageDelay sets the pause between search pages.
func WithPageDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.pageDelay = d
	}
}

// WithPageRetry sets the first backoff interval and the total attempts per
// search page. The interval doubles after each failure.
func WithPageRetry(initial time.Duration, attempts int) ClientOption {
	return func(c *Client) {
		c.retryInitial = initial
		c.retryAttempts = attempts
	}
}

// NewClient creates a disclosure client.
func NewClient(httpClient *fetch.Client, opts ...ClientOption) *Client {
	c := &Client{
		http:          httpClient,
		baseURL:       DefaultBaseURL,
		logger:        slog.Default(),
		pageSize:      20,
		pageDelay:     500 * time.Millisecond,
		retryInitial:  10 * time.Second,
		retryAttempts: 5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Announcements pages through the suspension notices uploaded between from
// and to (inclusive dates). It returns the rows fetched and the total the
// site reported. Paging stops at the reported total, at an empty page, or
// at a page that still fails after every retry. When the first page fails,
// the error wraps ErrSearchFailed.
func (c *Client) Announcements(ctx context.Context, from, to time.Time) ([]Announcement, int, error) {
	var all []Announcement
	total := -1
	start := 0

	c.logger.Info("fetching announcements",
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly),
	)

	for total < 0 || start < total {
		page, err := c.searchPage(ctx, from, to, start)
		if err != nil {
			if ctx.Err() != nil {
				return all, max(total, 0), ctx.Err()
			}
			if total < 0 {
				return nil, 0, fmt.Errorf("%w: %w", ErrSearchFailed, err)
			}
			c.logger.Error("failed to fetch announcement page", "start", start, "error", err)
			break
		}

		if total < 0 {
			total = page.TotalRecords
			c.logger.Info("announcements found", "total", total)
		}
		if len(page.Data) == 0 {
			c.logger.Info("empty announcement page, assuming end of results", "start", start)
			break
		}

		all = append(all, page.Data...)
		start += c.pageSize

		select {
		case <-ctx.Done():
			return all, total, ctx.Err()
		case <-time.After(c.pageDelay):
		}
	}

	total = max(total, 0)
	c.logger.Info("announcements fetched", "fetched", len(all), "reported", total)
	return all, total, nil
}

func (c *Client) searchPage(ctx context.Context, from, to time.Time, start int) (*searchResponse, error) {
	query, err := searchQuery(from, to, start, c.pageSize)
	if err != nil {
		return nil, err
	}

	var page *searchResponse
	op := func() error {
		query.Set("_", strconv.FormatInt(time.Now().UnixMilli(), 10))

		resp, err := c.http.Do(ctx, fetch.Request{
			Method:  http.MethodGet,
			URL:     c.baseURL + searchPath,
			Query:   query,
			Header:  http.Header{"Accept": []string{"application/json"}},
			NoRetry: true,
		})
		if err != nil {
			var httpErr *fetch.HTTPError
			if errors.As(err, &httpErr) && !httpErr.IsRetryable() {
				return backoff.Permanent(err)
			}
			return err
		}

		var r searchResponse
		if err := json.Unmarshal(resp.Body, &r); err != nil {
			return fmt.Errorf("decode search page: %w", err)
		}
		if r.Success != nil && !*r.Success {
			msg := r.Message
			if msg == "" {
				msg = "unknown error"
			}
			return fmt.Errorf("search api error: %s", msg)
		}
		page = &r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("retrying announcement page", "start", start, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, c.pageBackOff(ctx), notify); err != nil {
		return nil, fmt.Errorf("search page at %d: %w", start, err)
	}
	return page, nil
}

func (c *Client) pageBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.retryInitial << 4
	b.MaxElapsedTime = 0
	b.Reset()

	retries := max(c.retryAttempts-1, 0)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

type aoParam struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// searchQuery builds the DataTables style aoData parameter the search
// endpoint expects.
func searchQuery(from, to time.Time, start, length int) (url.Values, error) {
	params := []aoParam{
		{"sEcho", 1},
		{"iColumns", 7},
		{"sColumns", ",,,,,,"},
		{"iDisplayStart", start},
		{"iDisplayLength", length},
		{"mDataProp_0", "fundCode"},
		{"mDataProp_1", "classificationCode"},
		{"mDataProp_2", "fundId"},
		{"mDataProp_3", "organName"},
		{"mDataProp_4", "reportDesp"},
		{"mDataProp_5", "reportSendDate"},
		{"mDataProp_6", "uploadInfoId"},
		{"fundType", FundTypeQDII},
		{"reportTypeCode", ReportTypeSuspend},
		{"reportYear", ""},
		{"fundCompanyShortName", ""},
		{"fundCode", ""},
		{"fundShortName", ""},
		{"startUploadDate", from.Format(time.DateOnly)},
		{"endUploadDate", to.Format(time.DateOnly)},
	}

	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode aoData: %w", err)
	}

	q := url.Values{}
	q.Set("aoData", string(data))
	return q, nil
}

// Disclosure returns the HTML view of one announcement, decoded to UTF-8.
func (c *Client) Disclosure(ctx context.Context, uploadInfoID string) (string, error) {
	q := url.Values{}
	q.Set("instanceid", uploadInfoID)

	html, err := c.http.GetText(ctx, c.baseURL+viewPath, q)
	if err != nil {
		return "", fmt.Errorf("get disclosure %s: %w", uploadInfoID, err)
	}
	return html, nil
}

// DisclosureURL returns the public link of an announcement.
func (c *Client) DisclosureURL(uploadInfoID string) string {
	return c.baseURL + viewPath + "?instanceid=" + url.QueryEscape(uploadInfoID)
}
