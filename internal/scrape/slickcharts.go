package scrape

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kaptinlin/jsonrepair"

	"github.com/rickgao/market-etl/internal/model"
)

var (
	// ErrNoRows is returned when a page holds no recognizable data rows.
	ErrNoRows = errors.New("no data rows found")

	// ErrNoScriptData is returned when no embedded company list is found.
	ErrNoScriptData = errors.New("no embedded script data found")
)

// ParseSlickChartsTable extracts constituents from the SlickCharts index
// table: rank, name, symbol, weight, price, net change, (percent change).
func ParseSlickChartsTable(html string) ([]model.Constituent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []model.Constituent
	doc.Find("table tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 7 {
			return
		}

		symbol := linkOrText(cells.Eq(2))
		name := linkOrText(cells.Eq(1))
		if symbol == "" || name == "" {
			return
		}

		out = append(out, model.Constituent{
			No:        ParseRank(cellText(cells.Eq(0)), i+1),
			Symbol:    symbol,
			Name:      name,
			Weight:    Float(strings.ReplaceAll(cellText(cells.Eq(3)), "%", ""), false),
			Price:     Float(cellText(cells.Eq(4)), false),
			NetChange: Float(cellText(cells.Eq(5)), true),
			Change:    ParsePercent(cellText(cells.Eq(6))),
		})
	})

	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

// scriptPatterns locate the company list embedded in page scripts, in
// order of preference.
var scriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)window\.__sc_init_state__\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)__sc_init_state__\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)"companyList"\s*:\s*(\[.*?\])`),
	regexp.MustCompile(`(?s)var\s+companies\s*=\s*(\[.*?\]);`),
	regexp.MustCompile(`(?s)const\s+data\s*=\s*(\{.*?\});`),
}

// listKeys are the object keys that may hold the company list.
var listKeys = []string{"companyList", "companies", "data", "stocks", "constituents"}

// ParseSlickChartsScript extracts constituents from the JavaScript state
// object SlickCharts embeds in its pages. Malformed object literals are
// repaired before decoding.
func ParseSlickChartsScript(html string) ([]model.Constituent, error) {
	var list []map[string]any
	for _, re := range scriptPatterns {
		m := re.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		data, err := decodeLenient(m[1])
		if err != nil {
			continue
		}
		if list = companyList(data); len(list) > 0 {
			break
		}
	}
	if len(list) == 0 {
		return nil, ErrNoScriptData
	}

	out := make([]model.Constituent, 0, len(list))
	for i, c := range list {
		symbol := AnyToString(c["symbol"])
		if symbol == "" {
			continue
		}
		name := AnyToString(c["name"])
		if name == "" {
			name = AnyToString(c["companyName"])
		}

		rank := i + 1
		if r, ok := c["rank"]; ok {
			rank = ParseRank(AnyToString(r), i+1)
		}

		price := AnyToFloat(c["lastPrice"], false)
		if price == 0 {
			price = AnyToFloat(c["price"], false)
		}
		change := AnyToFloat(c["changePercent"], true)
		if change == 0 {
			change = AnyToFloat(c["change"], true)
		}

		var marketCap float64
		switch v := c["marketCap"].(type) {
		case string:
			marketCap = ParseMarketCap(v)
		default:
			marketCap = AnyToFloat(v, false)
		}

		out = append(out, model.Constituent{
			No:        rank,
			Symbol:    symbol,
			Name:      name,
			MarketCap: marketCap,
			Price:     price,
			Change:    change,
			Weight:    AnyToFloat(c["weight"], false),
			NetChange: AnyToFloat(c["netChange"], true),
		})
	}

	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

// decodeLenient decodes JSON, repairing JavaScript object literals
// (unquoted keys, single quotes, trailing commas) when strict decoding fails.
func decodeLenient(raw string) (any, error) {
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err == nil {
		return data, nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("repair json: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &data); err != nil {
		return nil, fmt.Errorf("decode repaired json: %w", err)
	}
	return data, nil
}

func companyList(data any) []map[string]any {
	switch v := data.(type) {
	case []any:
		return asObjects(v)
	case map[string]any:
		if comp, ok := v["companyListComponent"].(map[string]any); ok {
			if list := asObjects(comp["companyList"]); len(list) > 0 {
				return list
			}
		}
		for _, k := range listKeys {
			if list := asObjects(v[k]); len(list) > 0 {
				return list
			}
		}
	}
	return nil
}

func asObjects(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func cellText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

func linkOrText(s *goquery.Selection) string {
	if a := s.Find("a").First(); a.Length() > 0 {
		if t := strings.TrimSpace(a.Text()); t != "" {
			return t
		}
	}
	return cellText(s)
}

// Parser names reported by ParseSlickChartsPage.
const (
	ParserTable   = "table"
	ParserScript  = "script"
	ParserLargest = "largest-table"
)

// ParseSlickChartsPage runs the SlickCharts parsers in order (rendered
// table, embedded script state, largest table) and reports which one
// produced the rows.
func ParseSlickChartsPage(html string) ([]model.Constituent, string, error) {
	if rows, err := ParseSlickChartsTable(html); err == nil {
		return rows, ParserTable, nil
	}
	if rows, err := ParseSlickChartsScript(html); err == nil {
		return rows, ParserScript, nil
	}
	rows, err := ParseLargestTable(html)
	if err != nil {
		return nil, "", err
	}
	return rows, ParserLargest, nil
}
