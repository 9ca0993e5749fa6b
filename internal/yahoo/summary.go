package yahoo

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/market-etl/internal/model"
)

// rawValue is Yahoo's {"raw": 1.23, "fmt": "1.23"} number wrapper. Missing
// values arrive as {}.
type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				TrailingPE     rawValue `json:"trailingPE"`
				ForwardPE      rawValue `json:"forwardPE"`
				PriceToSales12 rawValue `json:"priceToSalesTrailing12Months"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				TrailingEps rawValue `json:"trailingEps"`
				PriceToBook rawValue `json:"priceToBook"`
				ForwardPE   rawValue `json:"forwardPE"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"quoteSummary"`
}

// Ratios returns trailing PE, trailing EPS, price/sales, price/book and
// forward PE. ErrNoData is returned when none of them is known.
func (c *Client) Ratios(ctx context.Context, symbol string) (model.Ratios, error) {
	params := url.Values{}
	params.Set("modules", "summaryDetail,defaultKeyStatistics")

	var resp quoteSummaryResponse
	if err := c.getJSONWithCrumb(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(symbol), params, &resp); err != nil {
		return model.Ratios{}, fmt.Errorf("get ratios %s: %w", symbol, err)
	}
	if err := resp.QuoteSummary.Error.err(); err != nil {
		return model.Ratios{}, fmt.Errorf("get ratios %s: %w", symbol, err)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return model.Ratios{}, fmt.Errorf("get ratios %s: %w", symbol, ErrNoData)
	}

	res := resp.QuoteSummary.Result[0]
	r := model.Ratios{
		PERatio:   res.SummaryDetail.TrailingPE.Raw,
		EPSTTM:    res.DefaultKeyStatistics.TrailingEps.Raw,
		PSRatio:   res.SummaryDetail.PriceToSales12.Raw,
		PBRatio:   res.DefaultKeyStatistics.PriceToBook.Raw,
		ForwardPE: res.SummaryDetail.ForwardPE.Raw,
	}
	if r.ForwardPE == nil {
		r.ForwardPE = res.DefaultKeyStatistics.ForwardPE.Raw
	}

	if r.Empty() {
		return model.Ratios{}, fmt.Errorf("get ratios %s: %w", symbol, ErrNoData)
	}
	return r, nil
}
