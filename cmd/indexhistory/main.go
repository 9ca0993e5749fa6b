package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rickgao/market-etl/internal/app"
	"github.com/rickgao/market-etl/internal/fetch"
	"github.com/rickgao/market-etl/internal/history"
	"github.com/rickgao/market-etl/internal/yahoo"
)

func main() {
	var flags app.Flags
	flags.Register(flag.CommandLine)
	indexArg := flag.String("index", "all", "index to update: all, sp500, nasdaq100, dow (comma separated)")
	outDir := flag.String("out", "", "directory for history files (default: output.dir)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: indexhistory [flags] [max|latest|YYYY-MM]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	job, err := app.Setup("indexhistory", flags)
	if err != nil {
		app.Fatal("indexhistory", err)
	}

	ctx, cancel := job.Context()
	err = run(ctx, job, flag.Arg(0), *indexArg, *outDir)
	cancel()
	os.Exit(job.Finish(err))
}

func run(ctx context.Context, job *app.Job, modeArg, indexArg, outDir string) error {
	logger := job.Logger

	if modeArg == "" {
		modeArg = "latest"
	}
	mode, err := history.ParseMode(modeArg, time.Now())
	if err != nil {
		return err
	}
	indexes, err := app.SelectIndexes(indexArg)
	if err != nil {
		return err
	}
	if outDir == "" {
		outDir = job.Config.Output.Dir
	}

	yc := yahoo.NewClient(job.HTTPClient(fetch.WithCookieJar()), yahoo.WithLogger(logger))
	results, err := history.NewJob(yc, history.FileStore{Dir: outDir}, logger).Run(ctx, mode, indexes)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		logger.Info("index history updated",
			"index", r.Index,
			"fetched", r.Fetched,
			"added", r.Added,
			"total", r.Total,
		)
	}
	logger.Info("index history complete", "mode", mode.Name, "indexes", len(results), "failed", failed)

	if failed > 0 && failed == len(results) {
		return fmt.Errorf("all %d indexes failed", failed)
	}
	return nil
}
