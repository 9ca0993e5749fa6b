package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"github.com/rickgao/market-etl/internal/fetch"
	"github.com/rickgao/market-etl/internal/model"
)

// DefaultBaseURL is the Financial Modeling Prep API host.
const DefaultBaseURL = "https://financialmodelingprep.com"

// quoteBatchSize keeps quote URLs at a reasonable length.
const quoteBatchSize = 100

// Constituent list endpoints per index, tried in order. FMP has renamed
// these between API generations, so both spellings are kept.
var Endpoints = map[string][]string{
	"sp500": {
		"/stable/sp500_constituents",
		"/stable/sp500_constituent",
		"/api/v3/sp500_constituents",
		"/api/v3/sp500_constituent",
	},
	"nasdaq100": {
		"/stable/nasdaq_100_constituents",
		"/stable/nasdaq_constituents",
		"/stable/nasdaq_constituent",
		"/api/v3/nasdaq_100_constituents",
		"/api/v3/nasdaq_constituents",
		"/api/v3/nasdaq_constituent",
	},
	"dow": {
		"/stable/dowjones_constituent",
		"/api/v3/dowjones_constituent",
	},
}

// ErrNoConstituents is returned when every endpoint failed or was empty.
var ErrNoConstituents = errors.New("all endpoints failed or returned empty data")

// Member is one index member as listed by FMP.
type Member struct {
	Symbol         string `json:"symbol"`
	Name           string `json:"name"`
	Sector         string `json:"sector"`
	SubSector      string `json:"subSector"`
	HeadQuarter    string `json:"headQuarter"`
	DateFirstAdded string `json:"dateFirstAdded"`
	CIK            string `json:"cik"`
	Founded        string `json:"founded"`
}

// Quote is the subset of an FMP quote the jobs use.
type Quote struct {
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	Price             *float64 `json:"price"`
	Change            *float64 `json:"change"`
	ChangesPercentage *float64 `json:"changesPercentage"`
	MarketCap         *float64 `json:"marketCap"`
	Volume            *float64 `json:"volume"`
	YearHigh          *float64 `json:"yearHigh"`
	PE                *float64 `json:"pe"`
}

// Client is an FMP API client.
type Client struct {
	http    *fetch.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewClient creates a new FMP client.
func NewClient(httpClient *fetch.Client, baseURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

// Constituents tries each endpoint until one returns a non-empty list,
// either as a top-level array or wrapped under symbols, constituents,
// components or data.
func (c *Client) Constituents(ctx context.Context, endpoints []string) ([]Member, error) {
	for _, ep := range endpoints {
		body, err := c.http.Get(ctx, c.baseURL+ep, c.query())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("constituent endpoint failed", "endpoint", ep, "status", fetch.StatusCode(err), "error", err)
			continue
		}

		members, err := decodeMembers(body)
		if err != nil {
			c.logger.Debug("constituent endpoint returned unusable body", "endpoint", ep, "error", err)
			continue
		}
		if len(members) > 0 {
			c.logger.Info("fetched constituents", "endpoint", ep, "count", len(members))
			return members, nil
		}
	}
	return nil, ErrNoConstituents
}

func decodeMembers(body []byte) ([]Member, error) {
	var list []Member
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode constituents: %w", err)
	}
	for _, key := range []string{"symbols", "constituents", "components", "data"} {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
			return list, nil
		}
	}
	return nil, nil
}

// Quotes fetches quotes for symbols in batches of 100. A failing batch is
// logged and skipped.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	out := make(map[string]Quote, len(symbols))
	for _, batch := range lo.Chunk(symbols, quoteBatchSize) {
		var quotes []Quote
		path := "/stable/quote/" + strings.Join(batch, ",")
		if err := c.http.GetJSON(ctx, c.baseURL+path, c.query(), &quotes); err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			c.logger.Warn("failed to fetch quotes batch", "first", batch[0], "size", len(batch), "error", err)
			continue
		}
		for _, q := range quotes {
			if q.Symbol != "" {
				out[q.Symbol] = q
			}
		}
	}
	return out, nil
}

// IndexConstituents fetches an index's members and their last prices.
func (c *Client) IndexConstituents(ctx context.Context, indexKey string) ([]model.Constituent, error) {
	endpoints, ok := Endpoints[indexKey]
	if !ok {
		return nil, fmt.Errorf("no fmp endpoints for index %q", indexKey)
	}

	members, err := c.Constituents(ctx, endpoints)
	if err != nil {
		return nil, fmt.Errorf("get %s constituents: %w", indexKey, err)
	}

	symbols := lo.Uniq(lo.FilterMap(members, func(m Member, _ int) (string, bool) {
		return m.Symbol, m.Symbol != ""
	}))
	quotes, err := c.Quotes(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("get %s quotes: %w", indexKey, err)
	}

	return ToConstituents(members, quotes), nil
}

// ToConstituents joins members with quotes. Members without a symbol are
// dropped; price and market cap stay 0 when no quote is known.
func ToConstituents(members []Member, quotes map[string]Quote) []model.Constituent {
	out := make([]model.Constituent, 0, len(members))
	for _, m := range members {
		if m.Symbol == "" {
			continue
		}
		c := model.Constituent{
			No:     len(out) + 1,
			Symbol: m.Symbol,
			Name:   m.Name,
		}
		if q, ok := quotes[m.Symbol]; ok {
			c.Price = deref(q.Price)
			c.Change = deref(q.ChangesPercentage)
			c.NetChange = deref(q.Change)
			c.MarketCap = deref(q.MarketCap)
			if c.Name == "" {
				c.Name = q.Name
			}
		}
		out = append(out, c)
	}
	return out
}

func (c *Client) query() url.Values {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	return q
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
