package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rickgao/market-etl/internal/model"
	"github.com/rickgao/market-etl/internal/output"
	"github.com/rickgao/market-etl/internal/yahoo"
)

// Fetcher returns daily bars for a symbol.
type Fetcher interface {
	Chart(ctx context.Context, symbol string, q yahoo.ChartQuery) ([]model.Bar, error)
}

// Load downloads daily bars for the basket and the benchmark. Tickers that
// fail are logged and left out; a missing benchmark is an error.
func Load(ctx context.Context, f Fetcher, cfg Config, start, end time.Time, logger *slog.Logger) (map[string][]model.Bar, error) {
	if logger == nil {
		logger = slog.Default()
	}

	prices := make(map[string][]model.Bar, len(cfg.Tickers)+1)
	for _, symbol := range append(append([]string(nil), cfg.Tickers...), cfg.Benchmark) {
		bars, err := f.Chart(ctx, symbol, yahoo.ChartQuery{Start: start, End: end, Interval: "1d"})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("failed to download prices", "ticker", symbol, "error", err)
			continue
		}
		prices[symbol] = bars
		logger.Info("downloaded prices", "ticker", symbol, "days", len(bars))
	}

	if _, ok := prices[cfg.Benchmark]; !ok {
		return nil, fmt.Errorf("no data for benchmark %s", cfg.Benchmark)
	}
	return prices, nil
}

// Report is the full outcome of a backtest.
type Report struct {
	Result    Result
	Strategy  []ValuePoint
	Benchmark []ValuePoint
	Returns   []PeriodReturn
	Summary   Summary
}

// Evaluate runs the strategy, the benchmark and the holding period analysis.
func Evaluate(cfg Config, prices map[string][]model.Bar) Report {
	res := Run(cfg, prices)
	strategy, bench := Align(res.Values, Benchmark(cfg.Capital, prices[cfg.Benchmark]))
	returns := PeriodReturns(strategy, bench, res.Trades, cfg.HoldingPeriods)

	return Report{
		Result:    res,
		Strategy:  strategy,
		Benchmark: bench,
		Returns:   returns,
		Summary:   Summarize(cfg, strategy, bench, res.Trades, returns),
	}
}

// WriteCSV writes the trades and period returns into dir as
// {prefix}_trades.csv and {prefix}_period_returns.csv.
func (r Report) WriteCSV(dir, prefix string) ([]string, error) {
	tradesPath := filepath.Join(dir, prefix+"_trades.csv")
	returnsPath := filepath.Join(dir, prefix+"_period_returns.csv")

	if err := output.WriteCSV(tradesPath, r.Result.Trades); err != nil {
		return nil, err
	}
	if err := output.WriteCSV(returnsPath, r.Returns); err != nil {
		return nil, err
	}
	return []string{tradesPath, returnsPath}, nil
}

// Log writes the summary through logger.
func (s Summary) Log(logger *slog.Logger) {
	logger.Info("backtest summary",
		"capital", s.Capital,
		"final_value", fmt.Sprintf("%.2f", s.FinalValue),
		"benchmark_final", fmt.Sprintf("%.2f", s.BenchmarkFinal),
		"total_return_pct", fmt.Sprintf("%.2f", s.TotalReturn),
		"benchmark_return_pct", fmt.Sprintf("%.2f", s.BenchmarkReturn),
		"outperformance_pct", fmt.Sprintf("%.2f", s.Outperformance),
		"trades", s.Trades,
	)
	for _, p := range s.Periods {
		logger.Info("holding period",
			"days", p.Days,
			"windows", p.Count,
			"avg_strategy_pct", fmt.Sprintf("%.2f", p.AvgStrategy),
			"avg_benchmark_pct", fmt.Sprintf("%.2f", p.AvgBenchmark),
			"avg_outperformance_pct", fmt.Sprintf("%.2f", p.AvgOutperformance),
			"win_rate_pct", fmt.Sprintf("%.1f", p.WinRate),
		)
	}
}
