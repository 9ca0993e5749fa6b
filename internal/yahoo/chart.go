package yahoo

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/market-etl/internal/model"
)

// ChartQuery selects the bars returned by Chart. Range (e.g. "max", "5y")
// takes precedence over Start/End.
type ChartQuery struct {
	Range    string
	Start    time.Time
	End      time.Time
	Interval string // 1d, 1wk, 1mo (default 1d)
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// Chart returns OHLCV bars for symbol, oldest first. Points with a missing
// price are skipped. Bar dates are the exchange-local calendar day at UTC
// midnight.
func (c *Client) Chart(ctx context.Context, symbol string, q ChartQuery) ([]model.Bar, error) {
	params := url.Values{}
	interval := q.Interval
	if interval == "" {
		interval = "1d"
	}
	params.Set("interval", interval)
	if q.Range != "" {
		params.Set("range", q.Range)
	} else {
		end := q.End
		if end.IsZero() {
			end = time.Now()
		}
		params.Set("period1", strconv.FormatInt(q.Start.Unix(), 10))
		params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	}
	params.Set("includePrePost", "false")
	params.Set("events", "div,splits")

	var resp chartResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/v8/finance/chart/"+url.PathEscape(symbol), params, &resp); err != nil {
		return nil, fmt.Errorf("get chart %s: %w", symbol, err)
	}
	if err := resp.Chart.Error.err(); err != nil {
		return nil, fmt.Errorf("get chart %s: %w", symbol, err)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("get chart %s: %w", symbol, ErrNoData)
	}

	bars := resp.Chart.Result[0].bars()
	if len(bars) == 0 {
		return nil, fmt.Errorf("get chart %s: %w", symbol, ErrNoData)
	}
	return bars, nil
}

func (r chartResult) bars() []model.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	quote := r.Indicators.Quote[0]

	out := make([]model.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		open, high, low, cl := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if open == nil || high == nil || low == nil || cl == nil {
			continue
		}
		var volume int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		local := time.Unix(ts+r.Meta.GMTOffset, 0).UTC()
		out = append(out, model.Bar{
			Date:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			Open:   *open,
			High:   *high,
			Low:    *low,
			Close:  *cl,
			Volume: volume,
		})
	}
	return out
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

// AllTimeHigh returns the highest daily high over the symbol's full history
// and the first day it was reached, rounded to cents.
func (c *Client) AllTimeHigh(ctx context.Context, symbol string) (model.AllTimeHigh, error) {
	bars, err := c.Chart(ctx, symbol, ChartQuery{Range: "max", Interval: "1d"})
	if err != nil {
		return model.AllTimeHigh{}, err
	}
	return HighestHigh(bars)
}

// HighestHigh finds the maximum High in bars. Ties keep the earliest bar.
func HighestHigh(bars []model.Bar) (model.AllTimeHigh, error) {
	if len(bars) == 0 {
		return model.AllTimeHigh{}, ErrNoData
	}
	best := bars[0]
	for _, b := range bars[1:] {
		if b.High > best.High {
			best = b
		}
	}
	return model.AllTimeHigh{
		Price: Round2(best.High),
		Date:  best.Date.Format("2006-01-02"),
	}, nil
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
