package constituents

import "github.com/rickgao/market-etl/internal/model"

// MergeMarketCap copies market cap (value and display text) from the
// StockAnalysis rows into the SlickCharts rows with the same symbol.
// It returns the number of rows updated.
func MergeMarketCap(slick, sa []model.Constituent) int {
	type marketCap struct {
		value float64
		text  string
	}
	lookup := make(map[string]marketCap, len(sa))
	for _, r := range sa {
		if r.Symbol != "" {
			lookup[r.Symbol] = marketCap{value: r.MarketCap, text: r.MarketCapText}
		}
	}

	updated := 0
	for i := range slick {
		if c, ok := lookup[slick[i].Symbol]; ok {
			slick[i].MarketCap = c.value
			slick[i].MarketCapText = c.text
			updated++
		}
	}
	return updated
}

// ApplyATH sets the all-time high on every row with data for its symbol.
func ApplyATH(rows []model.Constituent, ath map[string]model.AllTimeHigh) int {
	updated := 0
	for i := range rows {
		a, ok := ath[rows[i].Symbol]
		if !ok {
			continue
		}
		price := a.Price
		rows[i].ATHPrice = &price
		rows[i].ATHDate = a.Date
		updated++
	}
	return updated
}

// ApplyRatios sets valuation ratios on every row with data for its symbol.
func ApplyRatios(rows []model.Constituent, ratios map[string]model.Ratios) int {
	updated := 0
	for i := range rows {
		r, ok := ratios[rows[i].Symbol]
		if !ok {
			continue
		}
		rows[i].PERatio = r.PERatio
		rows[i].EPSTTM = r.EPSTTM
		rows[i].PSRatio = r.PSRatio
		rows[i].PBRatio = r.PBRatio
		rows[i].ForwardPE = r.ForwardPE
		updated++
	}
	return updated
}
