package scrape

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slickChartsFixture = `<html><body>
<table class="table table-hover">
<thead><tr><th>#</th><th>Company</th><th>Symbol</th><th>Portfolio%</th><th>Price</th><th>Chg</th><th>% Chg</th></tr></thead>
<tbody>
<tr><td>1</td><td><a href="/symbol/MSFT">Microsoft Corp</a></td><td><a href="/symbol/MSFT">MSFT</a></td><td>6.52%</td><td>$ 415.20</td><td>-3.10</td><td>(-0.74%)</td></tr>
<tr><td>2</td><td><a href="/symbol/NVDA">Nvidia Corp</a></td><td><a href="/symbol/NVDA">NVDA</a></td><td>6.11%</td><td>$ 1,208.88</td><td>12.40</td><td>(1.04%)</td></tr>
<tr><td>x</td><td>Apple Inc.</td><td>AAPL</td><td>5.90%</td><td>190.04</td><td>0.55</td><td>(0.29%)</td></tr>
<tr><td>4</td><td></td><td>EMPTY</td><td>1%</td><td>1</td><td>1</td><td>(1%)</td></tr>
<tr><td>5</td><td>Short Row</td><td>SR</td></tr>
</tbody>
</table>
</body></html>`

func TestParseSlickChartsTable(t *testing.T) {
	rows, err := ParseSlickChartsTable(slickChartsFixture)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].No)
	assert.Equal(t, "MSFT", rows[0].Symbol)
	assert.Equal(t, "Microsoft Corp", rows[0].Name)
	assert.InDelta(t, 6.52, rows[0].Weight, 1e-9)
	assert.InDelta(t, 415.20, rows[0].Price, 1e-9)
	assert.InDelta(t, -3.10, rows[0].NetChange, 1e-9)
	assert.InDelta(t, -0.74, rows[0].Change, 1e-9)

	assert.InDelta(t, 1208.88, rows[1].Price, 1e-9, "thousands separator stripped")

	assert.Equal(t, 3, rows[2].No, "non-numeric rank falls back to row position")
	assert.Equal(t, "AAPL", rows[2].Symbol)
	assert.Zero(t, rows[2].MarketCap)
}

func TestParseSlickChartsTableNoRows(t *testing.T) {
	_, err := ParseSlickChartsTable(`<html><body><p>loading...</p></body></html>`)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestParseSlickChartsScript(t *testing.T) {
	tests := []struct {
		name       string
		html       string
		wantSymbol []string
		wantFirst  float64 // price of the first row
	}{
		{
			name: "window init state",
			html: `<script>window.__sc_init_state__ = {"companyListComponent":{"companyList":[` +
				`{"rank":1,"symbol":"AAPL","name":"Apple Inc.","marketCap":"3,010,000,000,000","lastPrice":"190.04","changePercent":"-0.5%","weight":"7.1%","netChange":-0.95},` +
				`{"rank":2,"symbol":"MSFT","name":"Microsoft","marketCap":3000000000000,"lastPrice":415.2,"changePercent":0.2,"weight":6.9}` +
				`]}};</script>`,
			wantSymbol: []string{"AAPL", "MSFT"},
			wantFirst:  190.04,
		},
		{
			name: "javascript object literal needs repair",
			html: `<script>var companies = [{symbol: 'GS', companyName: 'Goldman Sachs', price: 470.1, change: -1.2, weight: 8.4,},];</script>`,
			wantSymbol: []string{"GS"},
			wantFirst:  470.1,
		},
		{
			name:       "bare company list",
			html:       `{"props":{"companyList":[{"symbol":"UNH","name":"UnitedHealth","price":"510.00"}]}}`,
			wantSymbol: []string{"UNH"},
			wantFirst:  510,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ParseSlickChartsScript(tt.html)
			require.NoError(t, err)
			var symbols []string
			for _, r := range rows {
				symbols = append(symbols, r.Symbol)
			}
			assert.Equal(t, tt.wantSymbol, symbols)
			assert.InDelta(t, tt.wantFirst, rows[0].Price, 1e-9)
		})
	}
}

func TestParseSlickChartsScriptFields(t *testing.T) {
	html := `window.__sc_init_state__ = {"companyListComponent":{"companyList":[` +
		`{"rank":"7","symbol":"META","name":"Meta","marketCap":"1.2T","lastPrice":"$500.5","changePercent":"-2.5","weight":"2.4%","netChange":"-12.8"}` +
		`]}};`
	rows, err := ParseSlickChartsScript(html)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, 7, r.No)
	assert.InDelta(t, 1.2e12, r.MarketCap, 1)
	assert.InDelta(t, 500.5, r.Price, 1e-9)
	assert.InDelta(t, -2.5, r.Change, 1e-9)
	assert.InDelta(t, 2.4, r.Weight, 1e-9)
	assert.InDelta(t, -12.8, r.NetChange, 1e-9)
}

func TestParseSlickChartsScriptMissing(t *testing.T) {
	_, err := ParseSlickChartsScript(`<script>var x = 1;</script>`)
	assert.ErrorIs(t, err, ErrNoScriptData)
}

func TestParseSlickChartsPage(t *testing.T) {
	rows, parser, err := ParseSlickChartsPage(slickChartsFixture)
	require.NoError(t, err)
	assert.Equal(t, ParserTable, parser)
	assert.Len(t, rows, 3)

	script := `<html><script>window.__sc_init_state__ = {"companyList":[{"symbol":"KO","name":"Coca-Cola"}]};</script></html>`
	rows, parser, err = ParseSlickChartsPage(script)
	require.NoError(t, err)
	assert.Equal(t, ParserScript, parser)
	assert.Equal(t, "KO", rows[0].Symbol)

	_, _, err = ParseSlickChartsPage(`<html></html>`)
	assert.ErrorIs(t, err, ErrNoRows)
}

// stockAnalysisFixture renders n data rows plus a header row.
func stockAnalysisFixture(n int) string {
	var b strings.Builder
	b.WriteString(`<html><body><table><thead><tr><th>No.</th><th>Symbol</th><th>Company Name</th><th>Market Cap</th><th>Stock Price</th><th>% Change</th></tr></thead><tbody>`)
	caps := []string{"3.45T", "812.5B", "25.1M", "-"}
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<tr><td>%d</td><td><a href="/stocks/s%d/">S%d</a></td><td>Company %d</td><td>%s</td><td>%d.50</td><td>-%d.25%%</td></tr>`,
			i, i, i, i, caps[(i-1)%len(caps)], 100+i, i%3)
	}
	b.WriteString(`<tr><td>Total</td><td></td><td></td><td></td><td></td><td></td></tr>`)
	b.WriteString(`</tbody></table></body></html>`)
	return b.String()
}

func TestParseStockAnalysisTable(t *testing.T) {
	rows, err := ParseStockAnalysisTable(stockAnalysisFixture(12))
	require.NoError(t, err)
	require.Len(t, rows, 12)

	first := rows[0]
	assert.Equal(t, 1, first.No)
	assert.Equal(t, "S1", first.Symbol)
	assert.Equal(t, "Company 1", first.Name)
	assert.Equal(t, "3.45T", first.MarketCapText)
	assert.InDelta(t, 3.45e12, first.MarketCap, 1)
	assert.InDelta(t, 101.50, first.Price, 1e-9)
	assert.InDelta(t, -1.25, first.Change, 1e-9)

	assert.InDelta(t, 812.5e9, rows[1].MarketCap, 1)
	assert.InDelta(t, 25.1e6, rows[2].MarketCap, 1)
	assert.Equal(t, "N/A", rows[3].MarketCapText)
	assert.Zero(t, rows[3].MarketCap)
}

func TestParseStockAnalysisTableTooFewRows(t *testing.T) {
	_, err := ParseStockAnalysisTable(stockAnalysisFixture(5))
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestParseLargestTable(t *testing.T) {
	html := `<table><tr><td>a</td></tr></table>
<table>
<tr><th>#</th><th>Company</th><th>Symbol</th><th>Weight</th><th>Price</th><th>Chg</th><th>%</th></tr>
<tr><td>1</td><td>Apple</td><td>AAPL</td><td>7.0%</td><td>1</td><td>1</td><td>1</td></tr>
<tr><td>2</td><td>Microsoft</td><td>MSFT</td><td>6.5%</td><td>1</td><td>1</td><td>1</td></tr>
</table>`
	rows, err := ParseLargestTable(html)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "MSFT", rows[1].Symbol)
	assert.InDelta(t, 6.5, rows[1].Weight, 1e-9)
}

func TestParseWikipediaSP500(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<table class="wikitable sortable"><tr><th>Symbol</th><th>Security</th><th>GICS Sector</th></tr>`)
	for i := 0; i < 55; i++ {
		sym := fmt.Sprintf("T%c", 'A'+rune(i%26))
		if i == 0 {
			sym = "BRK.B"
		}
		fmt.Fprintf(&b, `<tr><td><a>%s</a></td><td>Company Number %d</td><td>Financials</td></tr>`, sym, i)
	}
	b.WriteString(`</table>`)

	rows, err := ParseWikipediaSP500(b.String())
	require.NoError(t, err)
	assert.Len(t, rows, 55)
	assert.Equal(t, "BRK.B", rows[0].Symbol)
	assert.Equal(t, "Company Number 0", rows[0].Name)
	assert.Equal(t, 55, rows[54].No)
}

func TestParseWikipediaSP500SmallTable(t *testing.T) {
	_, err := ParseWikipediaSP500(`<table class="wikitable"><tr><td>AAPL</td><td>Apple Inc.</td></tr></table>`)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestNumberHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"price with dollar", Float("$1,234.50", false), 1234.5},
		{"unsigned drops minus", Float("-3.2", false), 3.2},
		{"signed keeps minus", Float("-3.2", true), -3.2},
		{"garbage", Float("n/a", true), 0},
		{"percent in parens", ParsePercent("(-0.74%)"), -0.74},
		{"market cap trillions", ParseMarketCap("3.45T"), 3.45e12},
		{"market cap billions lower", ParseMarketCap("812.5b"), 812.5e9},
		{"market cap plain", ParseMarketCap("1,000"), 1000},
		{"market cap dash", ParseMarketCap("-"), 0},
		{"market cap n/a", ParseMarketCap("N/A"), 0},
		{"any string", AnyToFloat("7.5%", false), 7.5},
		{"any number", AnyToFloat(float64(-2), true), -2},
		{"any nil", AnyToFloat(nil, true), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.got, 1e-3)
		})
	}

	assert.Equal(t, 12, ParseRank(" 12 ", 1))
	assert.Equal(t, 4, ParseRank("1a", 4))
	assert.Equal(t, 9, ParseRank("", 9))
}
