package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rickgao/market-etl/internal/app"
	"github.com/rickgao/market-etl/internal/backtest"
	"github.com/rickgao/market-etl/internal/fetch"
	"github.com/rickgao/market-etl/internal/yahoo"
)

const dateLayout = "2006-01-02"

func main() {
	var flags app.Flags
	flags.Register(flag.CommandLine)
	defaults := backtest.DefaultConfig()
	threshold := flag.Float64("threshold", defaults.Threshold, "drawdown from all-time high that triggers a buy")
	capital := flag.Float64("capital", defaults.Capital, "starting cash")
	tickers := flag.String("tickers", strings.Join(defaults.Tickers, ","), "comma separated basket")
	benchmark := flag.String("benchmark", defaults.Benchmark, "benchmark ticker")
	start := flag.String("start", "2020-01-01", "first day, YYYY-MM-DD")
	end := flag.String("end", "", "last day, YYYY-MM-DD (default: today)")
	csvDir := flag.String("csv", "", "directory for trade and period return CSVs (default: output.dir)")
	flag.Parse()

	job, err := app.Setup("backtest", flags)
	if err != nil {
		app.Fatal("backtest", err)
	}

	cfg := defaults
	cfg.Threshold = *threshold
	cfg.Capital = *capital
	cfg.Tickers = splitTickers(*tickers)
	cfg.Benchmark = strings.ToUpper(strings.TrimSpace(*benchmark))

	ctx, cancel := job.Context()
	err = run(ctx, job, cfg, *start, *end, *csvDir)
	cancel()
	os.Exit(job.Finish(err))
}

func run(ctx context.Context, job *app.Job, cfg backtest.Config, startArg, endArg, csvDir string) error {
	logger := job.Logger

	if err := validate(cfg); err != nil {
		return err
	}
	start, err := time.Parse(dateLayout, startArg)
	if err != nil {
		return fmt.Errorf("invalid -start %q: %w", startArg, err)
	}
	end := time.Now().UTC()
	if endArg != "" {
		if end, err = time.Parse(dateLayout, endArg); err != nil {
			return fmt.Errorf("invalid -end %q: %w", endArg, err)
		}
	}
	if !end.After(start) {
		return fmt.Errorf("-end %s must be after -start %s", end.Format(dateLayout), startArg)
	}
	if csvDir == "" {
		csvDir = job.Config.Output.Dir
	}

	logger.Info("running backtest",
		"tickers", cfg.Tickers,
		"benchmark", cfg.Benchmark,
		"threshold", cfg.Threshold,
		"start", start.Format(dateLayout),
		"end", end.Format(dateLayout),
	)

	yc := yahoo.NewClient(job.HTTPClient(fetch.WithCookieJar()), yahoo.WithLogger(logger))
	prices, err := backtest.Load(ctx, yc, cfg, start, end, logger)
	if err != nil {
		return err
	}

	report := backtest.Evaluate(cfg, prices)
	report.Summary.Log(logger)

	prefix := fmt.Sprintf("backtest_%s_%s", start.Format("20060102"), end.Format("20060102"))
	paths, err := report.WriteCSV(csvDir, prefix)
	if err != nil {
		return err
	}
	logger.Info("backtest complete", "trades", len(report.Result.Trades), "files", paths)
	return nil
}

func splitTickers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func validate(cfg backtest.Config) error {
	switch {
	case len(cfg.Tickers) == 0:
		return fmt.Errorf("no tickers")
	case cfg.Benchmark == "":
		return fmt.Errorf("no benchmark")
	case cfg.Threshold <= 0 || cfg.Threshold >= 1:
		return fmt.Errorf("threshold %v out of range (0, 1)", cfg.Threshold)
	case cfg.Capital <= 0:
		return fmt.Errorf("capital must be positive")
	}
	return nil
}
