package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rickgao/market-etl/internal/app"
	"github.com/rickgao/market-etl/internal/etf"
)

func main() {
	var flags app.Flags
	flags.Register(flag.CommandLine)
	storeKind := flag.String("store", app.StorePostgres, "target store: postgres, dynamodb")
	createTable := flag.Bool("create-table", false, "create missing DynamoDB tables before writing")
	verifyLeverage := flag.String("verify-leverage", "", "after the sync, query DynamoDB for this leverage type (e.g. \"2X Long\")")
	topN := flag.Int("top", etf.DefaultTopN, "gainers and losers kept per period")
	flag.Parse()

	job, err := app.Setup("etfsync", flags)
	if err != nil {
		app.Fatal("etfsync", err)
	}

	ctx, cancel := job.Context()
	err = run(ctx, job, options{
		store:          *storeKind,
		createTable:    *createTable,
		verifyLeverage: *verifyLeverage,
		topN:           *topN,
	})
	cancel()
	os.Exit(job.Finish(err))
}

type options struct {
	store          string
	createTable    bool
	verifyLeverage string
	topN           int
}

func run(ctx context.Context, job *app.Job, opts options) error {
	logger := job.Logger

	var store etf.Store
	var verify func(context.Context) error

	switch opts.store {
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
		if opts.createTable {
			if err := dyn.EnsureTables(ctx); err != nil {
				return err
			}
		}
		defer func() { logger.Info("writer stats", "stats", dyn.Stats()) }()
		store = dyn
		if opts.verifyLeverage != "" {
			verify = func(ctx context.Context) error {
				etfs, err := dyn.QueryByLeverage(ctx, opts.verifyLeverage)
				if err != nil {
					return err
				}
				logger.Info("leverage query", "leverage", opts.verifyLeverage, "count", len(etfs))
				for i, e := range etfs[:min(3, len(etfs))] {
					logger.Info("leverage sample", "n", i+1, "ticker", e.Ticker, "issuer", e.Issuer)
				}
				return nil
			}
		}
	default:
		return fmt.Errorf("unknown store %q (want postgres or dynamodb)", opts.store)
	}

	screener := etf.NewClient(job.HTTPClient(), etf.ScreenerURL, logger)
	syncer := etf.NewSync(etf.SyncConfig{TopN: opts.topN}, screener, store, logger)

	sum, err := syncer.Run(ctx)
	if err != nil {
		return err
	}
	if sum.StepErrors > 0 {
		logger.Warn("etf sync finished with step errors", "step_errors", sum.StepErrors)
	}

	if verify != nil {
		if err := verify(ctx); err != nil {
			logger.Warn("leverage query failed", "error", err)
		}
	}
	return nil
}
