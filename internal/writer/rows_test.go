package writer

import (
	"strings"
	"testing"
	"time"

	"github.com/rickgao/market-etl/internal/model"
)

func TestInsertSQL(t *testing.T) {
	got := insertSQL("t", []string{"a", `"bC"`, "d"}, "ON CONFLICT (a) DO NOTHING")
	want := `INSERT INTO t (a, "bC", d) VALUES ($1, $2, $3) ON CONFLICT (a) DO NOTHING`
	if got != want {
		t.Errorf("insertSQL() = %q, want %q", got, want)
	}

	if got := insertSQL("t", []string{"a"}, ""); got != "INSERT INTO t (a) VALUES ($1)" {
		t.Errorf("insertSQL() without conflict = %q", got)
	}
}

func TestUpsertClause(t *testing.T) {
	got := upsertClause([]string{"period", `"rankType"`, "rank", "ticker"}, []string{"period", `"rankType"`, "rank"})
	want := `ON CONFLICT (period, "rankType", rank) DO UPDATE SET ticker = EXCLUDED.ticker`
	if got != want {
		t.Errorf("upsertClause() = %q, want %q", got, want)
	}
}

func TestStatementsMatchColumns(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name    string
		columns []string
		args    []any
	}{
		{"etf", etfColumns, etfArgs(model.ETF{Ticker: "SPY"}, at)},
		{"new launch", newLaunchColumns, newLaunchArgs(model.NewLaunchETF{Ticker: "NEWX"})},
		{"gainer loser", gainerLoserColumns, gainerLoserArgs(model.GainerLoser{Ticker: "TQQQ"})},
		{"stat", statColumns, statArgs(model.StatRow{StatKey: "MARKET_STATS_TOTAL"})},
		{"constituent", constituentColumns, constituentArgs("dow", model.Constituent{Symbol: "AAPL"}, at)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.args) != len(tt.columns) {
				t.Errorf("len(args) = %d, want %d", len(tt.args), len(tt.columns))
			}
		})
	}
}

func TestETFArgs(t *testing.T) {
	aum := 5.2e11
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("EST", -5*3600))
	args := etfArgs(model.ETF{Ticker: "SPY", Issuer: "State Street", AUM: &aum}, at)

	if args[0] != "SPY" {
		t.Errorf("ticker = %v, want SPY", args[0])
	}
	if args[1] != nil {
		t.Errorf("empty etfLeverage = %v, want nil", args[1])
	}
	if args[2] != "State Street" {
		t.Errorf("issuer = %v, want State Street", args[2])
	}
	if p, ok := args[3].(*float64); !ok || *p != aum {
		t.Errorf("aum = %v, want %v", args[3], aum)
	}
	if args[len(args)-1] != at {
		t.Errorf("lastUpdated = %v, want %v", args[len(args)-1], at)
	}
}

func TestConstituentArgs_ZeroMarketCap(t *testing.T) {
	at := time.Now()
	args := constituentArgs("sp500", model.Constituent{Symbol: "AAPL", No: 1}, at)
	if p := args[4].(*float64); p != nil {
		t.Errorf("market_cap = %v, want nil for unknown", *p)
	}

	args = constituentArgs("sp500", model.Constituent{Symbol: "AAPL", MarketCap: 3.4e12}, at)
	if p := args[4].(*float64); p == nil || *p != 3.4e12 {
		t.Errorf("market_cap = %v, want 3.4e12", p)
	}
	if args[0] != "sp500" || args[1] != "AAPL" {
		t.Errorf("key = %v/%v, want sp500/AAPL", args[0], args[1])
	}
}

func TestQuotaArgs(t *testing.T) {
	q := model.FundQuota{
		FundCode:      "000041",
		FundName:      "华夏全球股票(QDII)",
		FundCompany:   "华夏基金",
		ShareClass:    "A",
		Quota:         1000,
		Currency:      "CNY",
		OTC:           "场外",
		EffectiveDate: "2025-03-14",
	}
	args, err := quotaArgs(q, time.Now())
	if err != nil {
		t.Fatalf("quotaArgs() error = %v", err)
	}
	if len(args) != len(quotaColumns) {
		t.Fatalf("len(args) = %d, want %d", len(args), len(quotaColumns))
	}
	if d := args[8].(time.Time); d.Format("2006-01-02") != "2025-03-14" {
		t.Errorf("effective_date = %v, want 2025-03-14", d)
	}
	if args[6] != nil {
		t.Errorf("empty pdf_id = %v, want nil", args[6])
	}

	q.EffectiveDate = "-"
	if _, err := quotaArgs(q, time.Now()); err == nil {
		t.Error("quotaArgs() with bad date: want error")
	}
}

func TestUpsertQuotaSQL_KeepsNewest(t *testing.T) {
	if !strings.HasSuffix(upsertQuotaSQL, "WHERE EXCLUDED.effective_date >= fund_quota.effective_date") {
		t.Errorf("upsertQuotaSQL = %q, want newest-wins guard", upsertQuotaSQL)
	}
	if strings.Contains(upsertQuotaSQL, "fund_name = EXCLUDED.fund_name") {
		t.Error("conflict key must not be updated")
	}
}

func TestArchiveSQL(t *testing.T) {
	for _, want := range []string{
		`INSERT INTO delisted_etfs (ticker, "etfLeverage", issuer, aum, "assetClass", "expenseRatio", "etfIndex", "delistedDate")`,
		`FROM etf_data WHERE ticker = $1`,
		`ON CONFLICT (ticker, "delistedDate") DO NOTHING`,
	} {
		if !strings.Contains(archiveSQL, want) {
			t.Errorf("archiveSQL missing %q", want)
		}
	}
}

func TestWriterConfigDefaults(t *testing.T) {
	if got := (WriterConfig{}).withDefaults().BatchSize; got != 25 {
		t.Errorf("BatchSize = %d, want 25", got)
	}
	if got := (WriterConfig{BatchSize: 100}).withDefaults().BatchSize; got != 100 {
		t.Errorf("BatchSize = %d, want 100", got)
	}
	if got := NewDynamoStore(WriterConfig{BatchSize: 100}, nil, nil).cfg.BatchSize; got != 25 {
		t.Errorf("dynamo BatchSize = %d, want 25", got)
	}
}
