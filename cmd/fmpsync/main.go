package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rickgao/market-etl/internal/app"
	"github.com/rickgao/market-etl/internal/fmp"
	"github.com/rickgao/market-etl/internal/output"
)

func main() {
	var flags app.Flags
	flags.Register(flag.CommandLine)
	indexArg := flag.String("index", "sp500,nasdaq100", "indexes to fetch: all, sp500, nasdaq100, dow (comma separated)")
	outDir := flag.String("out", "", "directory for JSON files (default: output.dir)")
	flag.Parse()

	job, err := app.Setup("fmpsync", flags)
	if err != nil {
		app.Fatal("fmpsync", err)
	}

	ctx, cancel := job.Context()
	err = run(ctx, job, *indexArg, *outDir)
	cancel()
	os.Exit(job.Finish(err))
}

func run(ctx context.Context, job *app.Job, indexArg, outDir string) error {
	logger := job.Logger
	if job.Config.Sources.FMPAPIKey == "" {
		return errors.New("fmp api key is required (set FMP_API_KEY)")
	}
	if outDir == "" {
		outDir = job.Config.Output.Dir
	}

	indexes, err := app.SelectIndexes(indexArg)
	if err != nil {
		return err
	}

	client := fmp.NewClient(job.HTTPClient(), fmp.DefaultBaseURL, job.Config.Sources.FMPAPIKey, logger)

	failed := 0
	for _, idx := range indexes {
		rows, err := client.IndexConstituents(ctx, idx.Key)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			logger.Error("failed to fetch fmp constituents", "index", idx.Key, "error", err)
			continue
		}

		priced := 0
		for _, r := range rows {
			if r.Price > 0 {
				priced++
			}
		}

		path := filepath.Join(outDir, idx.Key+"_fmp.json")
		if err := output.WriteJSON(path, rows); err != nil {
			return fmt.Errorf("save %s: %w", idx.Key, err)
		}
		logger.Info("fmp constituents saved",
			"index", idx.Key,
			"name", idx.Name,
			"constituents", len(rows),
			"with_price", priced,
			"path", path,
		)
	}

	if failed == len(indexes) {
		return errors.New("no index returned fmp constituents")
	}
	return nil
}
