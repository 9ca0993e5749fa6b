package etf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/market-etl/internal/model"
)

func TestExpenseRatioBucket(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, "N/A"},
		{f(0), "0.00-0.10"},
		{f(0.0945), "0.00-0.10"},
		{f(0.10), "0.10-0.25"},
		{f(0.25), "0.25-0.50"},
		{f(0.75), "0.50-1.00"},
		{f(1.00), "1.00-2.00"},
		{f(1.99), "1.00-2.00"},
		{f(2.00), "2.00+"},
		{f(9.5), "2.00+"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpenseRatioBucket(tt.in), "ratio %v", tt.in)
	}
}

func TestComputeMarketStats(t *testing.T) {
	etfs := map[string]model.ETF{
		"SPY":  {Ticker: "SPY", Issuer: "State Street", ETFLeverage: "Long", AUM: f(0.1), ExpenseRatio: f(0.0945)},
		"SPLG": {Ticker: "SPLG", Issuer: "State Street", ETFLeverage: "Long", AUM: f(0.2), ExpenseRatio: f(0.02)},
		"TQQQ": {Ticker: "TQQQ", Issuer: "ProShares", ETFLeverage: "3X Long", AUM: f(0.3), ExpenseRatio: f(0.84)},
		"XYZ":  {Ticker: "XYZ"},
	}

	s := ComputeMarketStats(etfs)

	assert.Equal(t, 4, s.Total.Count)
	assert.Equal(t, "0.6", s.Total.AUM.String(), "decimal sums are exact")
	assert.Equal(t, 2, s.Issuers["State Street"].Count)
	assert.Equal(t, "0.3", s.Issuers["State Street"].AUM.String())
	assert.Equal(t, 1, s.Issuers[Unknown].Count)
	assert.True(t, s.Issuers[Unknown].AUM.IsZero())
	assert.Equal(t, 1, s.Leverage[Unknown].Count)
	assert.Equal(t, 1, s.IssuerLeverage["ProShares"]["3X Long"].Count)
	assert.Equal(t, 2, s.ExpenseRatios["0.00-0.10"])
	assert.Equal(t, 1, s.ExpenseRatios["0.50-1.00"])
	assert.Equal(t, 1, s.ExpenseRatios["N/A"])
	assert.Equal(t, 0, s.ExpenseRatios["2.00+"])
}

func TestMarketStatsRows(t *testing.T) {
	etfs := map[string]model.ETF{
		"SPY":  {Ticker: "SPY", Issuer: "State Street", ETFLeverage: "Long", AUM: f(500)},
		"TQQQ": {Ticker: "TQQQ", Issuer: "ProShares", ETFLeverage: "3X Long", AUM: f(25), ExpenseRatio: f(0.84)},
	}

	rows := ComputeMarketStats(etfs).Rows()

	var keys []string
	for _, r := range rows {
		keys = append(keys, r.StatKey)
	}
	assert.Equal(t, []string{
		"MARKET_STATS_TOTAL",
		"ISSUER#ProShares",
		"ISSUER#State Street",
		"LEVERAGE#3X Long",
		"LEVERAGE#Long",
		"ISSUER_LEVERAGE#ProShares#3X Long",
		"ISSUER_LEVERAGE#State Street#Long",
		"EXPENSE_RATIO#0.00-0.10",
		"EXPENSE_RATIO#0.10-0.25",
		"EXPENSE_RATIO#0.25-0.50",
		"EXPENSE_RATIO#0.50-1.00",
		"EXPENSE_RATIO#1.00-2.00",
		"EXPENSE_RATIO#2.00+",
		"EXPENSE_RATIO#N/A",
	}, keys)

	total := rows[0]
	require.NotNil(t, total.TotalAUM)
	assert.Equal(t, 525.0, *total.TotalAUM)
	assert.Equal(t, 2, *total.TotalETFCount)
	assert.Nil(t, total.IssuerAUM)

	pair := rows[5]
	assert.Equal(t, "ProShares", pair.Issuer)
	assert.Equal(t, "3X Long", pair.LeverageType)
	assert.Equal(t, 25.0, *pair.LeverageAUM)

	assert.Equal(t, 1, *rows[10].ExpenseRatioCount, "0.50-1.00")
	assert.Equal(t, 1, *rows[13].ExpenseRatioCount, "N/A")
}
