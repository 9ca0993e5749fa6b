package backtest

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// PeriodReturn compares the portfolio and the benchmark over one holding
// window after a trade.
type PeriodReturn struct {
	TradeDate       string  `csv:"trade_date"`
	Ticker          string  `csv:"ticker"`
	HoldingDays     int     `csv:"holding_period_days"`
	SellDate        string  `csv:"sell_date"`
	StrategyReturn  float64 `csv:"strategy_return"`
	BenchmarkReturn float64 `csv:"benchmark_return"`
	Outperformance  float64 `csv:"outperformance"`
}

// PeriodReturns evaluates every trade over every holding period. strategy
// and benchmark must be aligned (see Align). The sell day is the first
// aligned day on or after buy + period; windows running past the data are
// skipped.
func PeriodReturns(strategy, benchmark []ValuePoint, trades []Trade, periods []int) []PeriodReturn {
	if len(strategy) != len(benchmark) {
		strategy, benchmark = Align(strategy, benchmark)
	}

	index := make(map[time.Time]int, len(strategy))
	for i, p := range strategy {
		index[p.Date] = i
	}

	var out []PeriodReturn
	for _, tr := range trades {
		buy, ok := index[tr.At]
		if !ok {
			continue
		}
		for _, days := range periods {
			target := tr.At.AddDate(0, 0, days)
			sell := sort.Search(len(strategy), func(i int) bool { return !strategy[i].Date.Before(target) })
			if sell == len(strategy) {
				continue
			}

			s := pctChange(strategy[buy].Value, strategy[sell].Value)
			b := pctChange(benchmark[buy].Value, benchmark[sell].Value)
			out = append(out, PeriodReturn{
				TradeDate:       tr.Date,
				Ticker:          tr.Ticker,
				HoldingDays:     days,
				SellDate:        strategy[sell].Date.Format(time.DateOnly),
				StrategyReturn:  s,
				BenchmarkReturn: b,
				Outperformance:  s - b,
			})
		}
	}
	return out
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

// PeriodStats aggregates the returns of one holding period.
type PeriodStats struct {
	Days              int
	Count             int
	AvgStrategy       float64
	AvgBenchmark      float64
	AvgOutperformance float64
	WinRate           float64 // percent of windows beating the benchmark
}

// Summary is the overall backtest outcome.
type Summary struct {
	Capital         float64
	FinalValue      float64
	BenchmarkFinal  float64
	TotalReturn     float64
	BenchmarkReturn float64
	Outperformance  float64
	Trades          int
	Periods         []PeriodStats
}

// Summarize computes totals and per-period averages. Periods without any
// evaluated window are omitted.
func Summarize(cfg Config, strategy, benchmark []ValuePoint, trades []Trade, returns []PeriodReturn) Summary {
	sum := Summary{Capital: cfg.Capital, Trades: len(trades)}
	if n := len(strategy); n > 0 {
		sum.FinalValue = strategy[n-1].Value
		sum.TotalReturn = pctChange(cfg.Capital, sum.FinalValue)
	}
	if n := len(benchmark); n > 0 {
		sum.BenchmarkFinal = benchmark[n-1].Value
		sum.BenchmarkReturn = pctChange(cfg.Capital, sum.BenchmarkFinal)
	}
	sum.Outperformance = sum.TotalReturn - sum.BenchmarkReturn

	byDays := lo.GroupBy(returns, func(r PeriodReturn) int { return r.HoldingDays })
	for _, days := range cfg.HoldingPeriods {
		rs := byDays[days]
		if len(rs) == 0 {
			continue
		}
		n := float64(len(rs))
		wins := lo.CountBy(rs, func(r PeriodReturn) bool { return r.Outperformance > 0 })
		sum.Periods = append(sum.Periods, PeriodStats{
			Days:              days,
			Count:             len(rs),
			AvgStrategy:       lo.SumBy(rs, func(r PeriodReturn) float64 { return r.StrategyReturn }) / n,
			AvgBenchmark:      lo.SumBy(rs, func(r PeriodReturn) float64 { return r.BenchmarkReturn }) / n,
			AvgOutperformance: lo.SumBy(rs, func(r PeriodReturn) float64 { return r.Outperformance }) / n,
			WinRate:           float64(wins) / n * 100,
		})
	}
	return sum
}
