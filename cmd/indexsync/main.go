package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rickgao/market-etl/internal/app"
	"github.com/rickgao/market-etl/internal/browser"
	"github.com/rickgao/market-etl/internal/constituents"
	"github.com/rickgao/market-etl/internal/enrich"
	"github.com/rickgao/market-etl/internal/fetch"
	"github.com/rickgao/market-etl/internal/yahoo"
)

func main() {
	var flags app.Flags
	flags.Register(flag.CommandLine)
	indexArg := flag.String("index", "all", "index to scrape: all, sp500, nasdaq100, dow (comma separated)")
	storeKind := flag.String("store", app.StoreNone, "where to upsert constituents: none, postgres, dynamodb")
	outDir := flag.String("out", "", "directory for JSON files (default: output.dir)")
	noBrowser := flag.Bool("no-browser", false, "fetch pages over plain HTTP instead of headless Chrome")
	noEnrich := flag.Bool("no-enrich", false, "skip all-time high and ratio enrichment")
	flag.Parse()

	job, err := app.Setup("indexsync", flags)
	if err != nil {
		app.Fatal("indexsync", err)
	}

	ctx, cancel := job.Context()
	err = run(ctx, job, options{
		index:     *indexArg,
		store:     *storeKind,
		outDir:    *outDir,
		noBrowser: *noBrowser,
		noEnrich:  *noEnrich,
	})
	cancel()
	os.Exit(job.Finish(err))
}

type options struct {
	index     string
	store     string
	outDir    string
	noBrowser bool
	noEnrich  bool
}

func run(ctx context.Context, job *app.Job, opts options) error {
	cfg := job.Config
	logger := job.Logger

	indexes, err := app.SelectIndexes(opts.index)
	if err != nil {
		return err
	}
	if opts.outDir == "" {
		opts.outDir = cfg.Output.Dir
	}

	client := job.HTTPClient()
	renderer := pageRenderer(job, client, opts.noBrowser)

	var store constituents.Store
	switch opts.store {
	case app.StoreNone:
	case app.StorePostgres:
		pg, closePool, err := job.OpenPostgres(ctx)
		if err != nil {
			return err
		}
		defer closePool()
		defer func() { logger.Info("writer stats", "stats", pg.Stats()) }()
		store = pg
	case app.StoreDynamo:
		dyn, err := job.OpenDynamo()
		if err != nil {
			return err
		}
		if err := dyn.EnsureTables(ctx); err != nil {
			return err
		}
		defer func() { logger.Info("writer stats", "stats", dyn.Stats()) }()
		store = dyn
	default:
		return fmt.Errorf("unknown store %q", opts.store)
	}

	var enricher *enrich.Enricher
	if !opts.noEnrich {
		yc := yahoo.NewClient(job.HTTPClient(fetch.WithCookieJar()), yahoo.WithLogger(logger))
		enricher = enrich.New(enrich.Config{
			Workers: cfg.Enrich.Workers,
			Delay:   cfg.Enrich.Delay,
			Timeout: enrich.DefaultConfig().Timeout,
		}, yc, logger)
	}

	pipeline := constituents.New(constituents.Config{
		OutputDir:  opts.outDir,
		IndexDelay: constituents.DefaultConfig().IndexDelay,
		SkipEnrich: opts.noEnrich,
	}, renderer, renderer, enricher, store, logger)

	start := time.Now()
	results, err := pipeline.Run(ctx, indexes)
	if err != nil {
		return err
	}

	succeeded, consistent := 0, 0
	for _, r := range results {
		if len(r.Rows()) > 0 {
			succeeded++
		}
		if r.Consistent() {
			consistent++
		}
		logger.Info("index result",
			"index", r.Index.Key,
			"slickcharts", r.SlickChartsCount,
			"stockanalysis", r.StockAnalysisCount,
			"consistent", r.Consistent(),
			"stored", r.Stored,
		)
	}

	logger.Info("index sync complete",
		"indexes", len(results),
		"succeeded", succeeded,
		"consistent", consistent,
		"duration", time.Since(start),
	)

	if succeeded == 0 {
		return errors.New("no index produced constituent data")
	}
	return nil
}

// pageRenderer renders with headless Chrome and falls back to plain HTTP.
func pageRenderer(job *app.Job, client *fetch.Client, noBrowser bool) browser.Renderer {
	httpRenderer := browser.NewHTTPRenderer(client, job.Logger)
	if noBrowser || job.Config.Browser.Disabled {
		return httpRenderer
	}

	chrome := browser.NewChromeRenderer(browser.ChromeConfig{
		ExecPath:        job.Config.Browser.ExecPath,
		UserAgent:       client.UserAgent(),
		ProxyURL:        job.ProxyURL(),
		WaitSelector:    browser.DefaultChromeConfig().WaitSelector,
		PageLoadTimeout: job.Config.Browser.PageLoadTimeout,
		Attempts:        job.Config.Browser.Attempts,
		RetryDelay:      job.Config.Browser.RetryDelay,
	}, job.Logger)
	return browser.NewFallbackRenderer(job.Logger, chrome, httpRenderer)
}
