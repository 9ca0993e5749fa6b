package scrape

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rickgao/market-etl/internal/model"
)

// ParseLargestTable is the last-resort parser: it takes the table with the
// most rows and reads rank, name, symbol and weight from rows with at least
// seven cells, skipping the header row.
func ParseLargestTable(html string) ([]model.Constituent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var largest *goquery.Selection
	maxRows := 0
	doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		if n := t.Find("tr").Length(); n > maxRows {
			maxRows = n
			largest = t
		}
	})
	if largest == nil {
		return nil, ErrNoRows
	}

	var out []model.Constituent
	largest.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td, th")
		if cells.Length() < 7 {
			return
		}
		symbol := linkOrText(cells.Eq(2))
		name := linkOrText(cells.Eq(1))
		if symbol == "" || name == "" {
			return
		}
		out = append(out, model.Constituent{
			No:     ParseRank(cellText(cells.Eq(0)), i),
			Symbol: symbol,
			Name:   name,
			Weight: Float(strings.ReplaceAll(cellText(cells.Eq(3)), "%", ""), false),
		})
	})

	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

// WikipediaSP500URL lists S&P 500 members and serves as an alternative
// source when SlickCharts blocks scraping.
const WikipediaSP500URL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z])?$`)

// ParseWikipediaSP500 reads symbol and name from the first wikitable with
// more than 50 rows. The symbol is the first ticker-shaped cell, the name
// the first longer cell after it.
func ParseWikipediaSP500(html string) ([]model.Constituent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []model.Constituent
	doc.Find("table.wikitable").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		rows := t.Find("tr")
		if rows.Length() <= 50 {
			return true
		}
		rows.Each(func(i int, row *goquery.Selection) {
			if i == 0 {
				return
			}
			var texts []string
			row.Find("td, th").Each(func(_ int, c *goquery.Selection) {
				texts = append(texts, cellText(c))
			})
			symbol, name := "", ""
			for _, txt := range texts {
				if symbol == "" && tickerPattern.MatchString(txt) {
					symbol = txt
					continue
				}
				if symbol != "" && len(txt) > 3 && txt != symbol {
					name = txt
					break
				}
			}
			if symbol != "" && name != "" {
				out = append(out, model.Constituent{No: len(out) + 1, Symbol: symbol, Name: name})
			}
		})
		return false
	})

	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}
