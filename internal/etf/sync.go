package etf

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/rickgao/market-etl/internal/model"
)

// Fetcher returns the current ETF universe keyed by ticker.
type Fetcher interface {
	Fetch(ctx context.Context) (map[string]model.ETF, error)
}

// Store persists ETF data and the tables derived from it.
type Store interface {
	ExistingTickers(ctx context.Context) ([]string, error)
	ArchiveDelisted(ctx context.Context, tickers []string, at time.Time) (int, error)
	UpsertETFs(ctx context.Context, etfs []model.ETF, at time.Time) (int, error)
	ReplaceMarketStats(ctx context.Context, rows []model.StatRow) error
	ReplaceNewLaunches(ctx context.Context, rows []model.NewLaunchETF) error
	ReplaceGainersLosers(ctx context.Context, rows []model.GainerLoser) error
}

// SyncConfig holds sync configuration.
type SyncConfig struct {
	TopN         int              // Gainers and losers kept per period (default: 50)
	LaunchWindow int              // New launch window in days (default: 10)
	Now          func() time.Time // Clock (default: time.Now)
}

// Summary reports what a sync run did.
type Summary struct {
	Fetched       int
	Existing      int
	Upserted      int
	Delisted      int
	StatRows      int
	NewLaunches   int
	GainersLosers int
	StepErrors    int
	Duration      time.Duration
}

// Sync runs the ETF pipeline against a Store.
type Sync struct {
	cfg     SyncConfig
	fetcher Fetcher
	store   Store
	logger  *slog.Logger
}

// NewSync creates a new Sync.
func NewSync(cfg SyncConfig, fetcher Fetcher, store Store, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.LaunchWindow <= 0 {
		cfg.LaunchWindow = DefaultLaunchWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Sync{cfg: cfg, fetcher: fetcher, store: store, logger: logger}
}

// Run fetches the screener, archives delisted ETFs, upserts the universe and
// rebuilds market stats, new launches and gainers/losers. Fetch and upsert
// failures abort the run; failures of the derived tables are logged and
// counted in StepErrors.
func (s *Sync) Run(ctx context.Context) (Summary, error) {
	start := s.cfg.Now()
	var sum Summary

	existing, err := s.store.ExistingTickers(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch existing tickers", "error", err)
		existing = nil
	}
	sum.Existing = len(existing)
	s.logger.Info("existing etfs in store", "count", sum.Existing)

	etfs, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return sum, fmt.Errorf("fetch etfs: %w", err)
	}
	sum.Fetched = len(etfs)

	now := s.cfg.Now().UTC()

	if delisted := Delisted(existing, lo.Keys(etfs)); len(delisted) > 0 {
		s.logger.Info("found delisted etfs", "count", len(delisted))
		n, err := s.store.ArchiveDelisted(ctx, delisted, now)
		if err != nil {
			s.stepFailed(&sum, "archive delisted", err)
		}
		sum.Delisted = n
	} else {
		s.logger.Info("no delisted etfs found")
	}

	n, err := s.store.UpsertETFs(ctx, Sorted(etfs), now)
	sum.Upserted = n
	if err != nil {
		return sum, fmt.Errorf("upsert etfs: %w", err)
	}
	s.logger.Info("upserted etfs", "count", n, "total", len(etfs))

	stats := ComputeMarketStats(etfs)
	rows := stats.Rows()
	if err := s.store.ReplaceMarketStats(ctx, rows); err != nil {
		s.stepFailed(&sum, "market stats", err)
	} else {
		sum.StatRows = len(rows)
		s.logger.Info("saved market stats",
			"issuers", len(stats.Issuers),
			"total_aum", stats.Total.AUM.StringFixed(0),
			"expense_ratios", stats.ExpenseRatios,
		)
	}

	launches := NewLaunches(etfs, now, s.cfg.LaunchWindow)
	if err := s.store.ReplaceNewLaunches(ctx, launches); err != nil {
		s.stepFailed(&sum, "new launches", err)
	} else {
		sum.NewLaunches = len(launches)
		s.logger.Info("saved new launch etfs", "count", len(launches), "window_days", s.cfg.LaunchWindow)
	}

	movers := GainersLosers(etfs, s.cfg.TopN)
	if err := s.store.ReplaceGainersLosers(ctx, movers); err != nil {
		s.stepFailed(&sum, "gainers and losers", err)
	} else {
		sum.GainersLosers = len(movers)
		s.logger.Info("saved gainers and losers", "periods", len(model.Periods), "items", len(movers))
	}

	if err := ctx.Err(); err != nil {
		return sum, err
	}

	sum.Duration = s.cfg.Now().Sub(start)
	s.logger.Info("etf sync complete",
		"fetched", sum.Fetched,
		"upserted", sum.Upserted,
		"delisted", sum.Delisted,
		"new_launches", sum.NewLaunches,
		"gainers_losers", sum.GainersLosers,
		"step_errors", sum.StepErrors,
		"duration", sum.Duration,
	)
	return sum, nil
}

func (s *Sync) stepFailed(sum *Summary, step string, err error) {
	sum.StepErrors++
	s.logger.Error("etf sync step failed", "step", step, "error", err)
}
