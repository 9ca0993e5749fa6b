package backtest

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/market-etl/internal/model"
	"github.com/rickgao/market-etl/internal/yahoo"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1+n, 0, 0, 0, 0, time.UTC)
}

func series(closes ...float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Date: day(i), Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func testConfig() Config {
	return Config{
		Tickers:        []string{"AAA", "BBB"},
		Benchmark:      "QQQ",
		Threshold:      0.20,
		Capital:        1000,
		HoldingPeriods: []int{2, 10},
	}
}

func testPrices() map[string][]model.Bar {
	return map[string][]model.Bar{
		"AAA": series(100, 90, 79, 85, 100),
		"BBB": series(50, 55, 50, 40, 45),
		"QQQ": series(10, 10, 11, 12, 12),
	}
}

func TestRun(t *testing.T) {
	res := Run(testConfig(), testPrices())

	require.Len(t, res.Trades, 2)
	a, b := res.Trades[0], res.Trades[1]

	assert.Equal(t, "AAA", a.Ticker)
	assert.Equal(t, "2024-01-03", a.Date)
	assert.Equal(t, 79.0, a.Price)
	assert.Equal(t, 100.0, a.ATH)
	assert.InDelta(t, -21.0, a.Drawdown, 1e-9)
	assert.InDelta(t, 500.0/79, a.Shares, 1e-9)

	assert.Equal(t, "BBB", b.Ticker)
	assert.Equal(t, 55.0, b.ATH, "running high, not the first close")
	assert.InDelta(t, 12.5, b.Shares, 1e-9)

	assert.InDelta(t, 0, res.Cash, 1e-9)
	require.Len(t, res.Values, 5)
	assert.InDelta(t, 1000, res.Values[2].Value, 1e-9)
	assert.InDelta(t, 500.0/79*85+500, res.Values[3].Value, 1e-9)
	assert.InDelta(t, 500.0/79*100+562.5, res.Values[4].Value, 1e-9)
}

func TestRunNoLookAhead(t *testing.T) {
	cfg := testConfig()
	prices := map[string][]model.Bar{
		"AAA": series(70, 75, 80, 100),
		"BBB": series(50, 50, 50, 50),
		"QQQ": series(1, 1, 1, 1),
	}

	res := Run(cfg, prices)
	assert.Empty(t, res.Trades, "later highs must not trigger earlier buys")
}

func TestRunCarriesLastClose(t *testing.T) {
	prices := testPrices()
	prices["BBB"] = prices["BBB"][:4]

	res := Run(testConfig(), prices)
	require.Len(t, res.Values, 5)
	assert.InDelta(t, 500.0/79*100+500, res.Values[4].Value, 1e-9, "BBB valued at its last close")
}

func TestRunIgnoresMissingTicker(t *testing.T) {
	cfg := testConfig()
	cfg.Tickers = append(cfg.Tickers, "ZZZ")

	res := Run(cfg, testPrices())
	assert.Len(t, res.Trades, 2)
	assert.InDelta(t, cfg.Capital-2*cfg.PositionSize(), res.Cash, 1e-9)
}

func TestBenchmarkAndAlign(t *testing.T) {
	bench := Benchmark(1000, series(10, 11, 12))
	require.Len(t, bench, 3)
	assert.InDelta(t, 1200, bench[2].Value, 1e-9)

	strategy := []ValuePoint{{Date: day(0), Value: 1}, {Date: day(1), Value: 2}, {Date: day(5), Value: 3}}
	s, b := Align(strategy, bench)
	require.Len(t, s, 2)
	require.Len(t, b, 2)
	assert.Equal(t, day(1), s[1].Date)
	assert.Equal(t, day(1), b[1].Date)

	assert.Nil(t, Benchmark(1000, nil))
}

func TestEvaluate(t *testing.T) {
	r := Evaluate(testConfig(), testPrices())

	require.Len(t, r.Returns, 1, "only AAA has data two days after its buy")
	pr := r.Returns[0]
	assert.Equal(t, "AAA", pr.Ticker)
	assert.Equal(t, 2, pr.HoldingDays)
	assert.Equal(t, "2024-01-05", pr.SellDate)
	final := 500.0/79*100 + 562.5
	assert.InDelta(t, (final-1000)/1000*100, pr.StrategyReturn, 1e-9)
	assert.InDelta(t, 100.0/11, pr.BenchmarkReturn, 1e-9)
	assert.InDelta(t, pr.StrategyReturn-pr.BenchmarkReturn, pr.Outperformance, 1e-12)

	s := r.Summary
	assert.Equal(t, 2, s.Trades)
	assert.InDelta(t, final, s.FinalValue, 1e-9)
	assert.InDelta(t, 20.0, s.BenchmarkReturn, 1e-9)
	require.Len(t, s.Periods, 1)
	assert.Equal(t, 2, s.Periods[0].Days)
	assert.Equal(t, 100.0, s.Periods[0].WinRate)
}

func TestSummarizeWinRate(t *testing.T) {
	cfg := testConfig()
	returns := []PeriodReturn{
		{HoldingDays: 2, StrategyReturn: 10, BenchmarkReturn: 5, Outperformance: 5},
		{HoldingDays: 2, StrategyReturn: 0, BenchmarkReturn: 5, Outperformance: -5},
		{HoldingDays: 10, StrategyReturn: 4, BenchmarkReturn: 4, Outperformance: 0},
	}

	s := Summarize(cfg, nil, nil, nil, returns)
	require.Len(t, s.Periods, 2)
	assert.Equal(t, 50.0, s.Periods[0].WinRate)
	assert.Equal(t, 5.0, s.Periods[0].AvgStrategy)
	assert.Equal(t, 0.0, s.Periods[0].AvgOutperformance)
	assert.Equal(t, 0.0, s.Periods[1].WinRate, "ties are not wins")
}

func TestReportWriteCSV(t *testing.T) {
	r := Evaluate(testConfig(), testPrices())

	paths, err := r.WriteCSV(t.TempDir(), "mag7")
	require.NoError(t, err)
	require.Len(t, paths, 2)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "date,ticker,action,price,shares,ath,drawdown", lines[0])
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-03,AAA,BUY,79,"))

	data, err = os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "trade_date,ticker,holding_period_days,sell_date,"))
}

type fakeFetcher map[string][]model.Bar

func (f fakeFetcher) Chart(_ context.Context, symbol string, q yahoo.ChartQuery) ([]model.Bar, error) {
	if q.Interval != "1d" {
		return nil, errors.New("unexpected interval")
	}
	bars, ok := f[symbol]
	if !ok {
		return nil, yahoo.ErrNoData
	}
	return bars, nil
}

func TestLoad(t *testing.T) {
	cfg := testConfig()
	prices := testPrices()
	delete(prices, "BBB")

	got, err := Load(context.Background(), fakeFetcher(prices), cfg, day(0), day(5), nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "QQQ")

	delete(prices, "QQQ")
	_, err = Load(context.Background(), fakeFetcher(prices), cfg, day(0), day(5), nil)
	assert.ErrorContains(t, err, "benchmark QQQ")
}
