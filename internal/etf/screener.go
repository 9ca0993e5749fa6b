package etf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"github.com/rickgao/market-etl/internal/fetch"
	"github.com/rickgao/market-etl/internal/model"
)

// ScreenerURL is the StockAnalysis ETF screener endpoint with every column
// the jobs store.
const ScreenerURL = "https://stockanalysis.com/api/screener/e/bd/" +
	"etfLeverage+issuer+aum+etfIndex+assetClass+expenseRatio+peRatio+price+volume+" +
	"ch1w+ch1m+ch6m+chYTD+ch1y+ch3y+ch5y+ch10y+high52+low52+" +
	"allTimeLow+allTimeLowChange+allTimeHigh+allTimeHighDate+allTimeHighChange+allTimeLowDate+inceptionDate.json"

// Client fetches the ETF screener.
type Client struct {
	http   *fetch.Client
	url    string
	logger *slog.Logger
}

// NewClient creates a screener client. An empty url uses ScreenerURL.
func NewClient(httpClient *fetch.Client, url string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if url == "" {
		url = ScreenerURL
	}
	return &Client{http: httpClient, url: url, logger: logger}
}

type screenerResponse struct {
	Status int `json:"status"`
	Data   struct {
		Data map[string]screenerRow `json:"data"`
	} `json:"data"`
}

type screenerRow struct {
	ETFLeverage       optString `json:"etfLeverage"`
	Issuer            optString `json:"issuer"`
	AUM               optFloat  `json:"aum"`
	AssetClass        optString `json:"assetClass"`
	ExpenseRatio      optFloat  `json:"expenseRatio"`
	PERatio           optFloat  `json:"peRatio"`
	Price             optFloat  `json:"price"`
	Volume            optFloat  `json:"volume"`
	Ch1w              optFloat  `json:"ch1w"`
	Ch1m              optFloat  `json:"ch1m"`
	Ch6m              optFloat  `json:"ch6m"`
	ChYTD             optFloat  `json:"chYTD"`
	Ch1y              optFloat  `json:"ch1y"`
	Ch3y              optFloat  `json:"ch3y"`
	Ch5y              optFloat  `json:"ch5y"`
	Ch10y             optFloat  `json:"ch10y"`
	High52            optFloat  `json:"high52"`
	Low52             optFloat  `json:"low52"`
	AllTimeLow        optFloat  `json:"allTimeLow"`
	AllTimeLowChange  optFloat  `json:"allTimeLowChange"`
	AllTimeHigh       optFloat  `json:"allTimeHigh"`
	AllTimeHighChange optFloat  `json:"allTimeHighChange"`
	AllTimeHighDate   optString `json:"allTimeHighDate"`
	AllTimeLowDate    optString `json:"allTimeLowDate"`
	ETFIndex          optString `json:"etfIndex"`
	InceptionDate     optString `json:"inceptionDate"`
}

// Fetch downloads the screener and returns the ETFs keyed by ticker.
func (c *Client) Fetch(ctx context.Context) (map[string]model.ETF, error) {
	c.logger.Info("fetching etf screener")

	body, err := c.http.Get(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("get screener: %w", err)
	}

	etfs, err := ParseScreener(body)
	if err != nil {
		return nil, err
	}

	c.logger.Info("fetched etf records", "count", len(etfs))
	return etfs, nil
}

// ParseScreener decodes a screener response body.
func ParseScreener(body []byte) (map[string]model.ETF, error) {
	var resp screenerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode screener: %w", err)
	}
	if resp.Status != 200 {
		return nil, fmt.Errorf("screener returned status %d", resp.Status)
	}

	out := make(map[string]model.ETF, len(resp.Data.Data))
	for ticker, r := range resp.Data.Data {
		if ticker == "" {
			continue
		}
		e := model.ETF{
			Ticker:            ticker,
			ETFLeverage:       string(r.ETFLeverage),
			Issuer:            string(r.Issuer),
			AUM:               r.AUM.v,
			AssetClass:        string(r.AssetClass),
			ExpenseRatio:      r.ExpenseRatio.v,
			PERatio:           r.PERatio.v,
			Price:             r.Price.v,
			Ch1w:              r.Ch1w.v,
			Ch1m:              r.Ch1m.v,
			Ch6m:              r.Ch6m.v,
			ChYTD:             r.ChYTD.v,
			Ch1y:              r.Ch1y.v,
			Ch3y:              r.Ch3y.v,
			Ch5y:              r.Ch5y.v,
			Ch10y:             r.Ch10y.v,
			High52:            r.High52.v,
			Low52:             r.Low52.v,
			AllTimeLow:        r.AllTimeLow.v,
			AllTimeLowChange:  r.AllTimeLowChange.v,
			AllTimeHigh:       r.AllTimeHigh.v,
			AllTimeHighChange: r.AllTimeHighChange.v,
			AllTimeHighDate:   string(r.AllTimeHighDate),
			AllTimeLowDate:    string(r.AllTimeLowDate),
			ETFIndex:          string(r.ETFIndex),
			InceptionDate:     string(r.InceptionDate),
		}
		if r.Volume.v != nil {
			v := int64(*r.Volume.v)
			e.Volume = &v
		}
		out[ticker] = e
	}
	return out, nil
}

// Sorted returns the ETFs ordered by ticker.
func Sorted(etfs map[string]model.ETF) []model.ETF {
	keys := lo.Keys(etfs)
	sort.Strings(keys)
	out := make([]model.ETF, 0, len(keys))
	for _, k := range keys {
		out = append(out, etfs[k])
	}
	return out
}

// optFloat decodes a number, a numeric string, or null/"" (nil).
type optFloat struct {
	v *float64
}

func (o *optFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Non-numeric placeholders such as "n/a" are treated as missing.
		return nil
	}
	o.v = &f
	return nil
}

// optString decodes a string, a number (formatted), or null ("").
type optString string

func (o *optString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = optString(s)
		return nil
	}
	*o = optString(b)
	return nil
}
