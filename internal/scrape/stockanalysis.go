package scrape

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rickgao/market-etl/internal/model"
)

// stockAnalysisSelectors are tried in order; the first one that matches more
// than minCandidateRows rows is used.
var stockAnalysisSelectors = []string{
	"table tbody tr",
	"tbody tr",
	"tr",
	"[data-testid='stock-table'] tbody tr",
	".stock-table tbody tr",
}

const minCandidateRows = 10

// ParseStockAnalysisTable extracts constituents from a StockAnalysis list
// page: no, symbol, name, market cap, price, change %.
func ParseStockAnalysisTable(html string) ([]model.Constituent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var rows []*goquery.Selection
	for _, sel := range stockAnalysisSelectors {
		found := doc.Find(sel)
		if found.Length() <= minCandidateRows {
			continue
		}
		found.Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < 6 {
				return
			}
			first := cellText(cells.Eq(0))
			if ParseRank(first, -1) < 0 {
				return
			}
			rows = append(rows, row)
		})
		break
	}

	var out []model.Constituent
	for i, row := range rows {
		cells := row.Find("td")
		symbol := cellText(cells.Eq(1))
		if symbol == "" {
			continue
		}

		capText := cellText(cells.Eq(3))
		if capText == "" || capText == "-" {
			capText = "N/A"
		}

		var price, change float64
		if t := cellText(cells.Eq(4)); t != "-" {
			price = Float(t, false)
		}
		if t := cellText(cells.Eq(5)); t != "-" {
			change = Float(t, true)
		}

		out = append(out, model.Constituent{
			No:            ParseRank(cellText(cells.Eq(0)), i+1),
			Symbol:        symbol,
			Name:          cellText(cells.Eq(2)),
			MarketCap:     ParseMarketCap(capText),
			MarketCapText: capText,
			Price:         price,
			Change:        change,
		})
	}

	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}
