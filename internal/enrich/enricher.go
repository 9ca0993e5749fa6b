package enrich

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/market-etl/internal/model"
)

// Source provides per-symbol market data.
type Source interface {
	AllTimeHigh(ctx context.Context, symbol string) (model.AllTimeHigh, error)
	Ratios(ctx context.Context, symbol string) (model.Ratios, error)
}

// Config holds enricher configuration.
type Config struct {
	Workers int           // Max concurrent requests (default: 10)
	Delay   time.Duration // Pause after each call, per worker (default: 0)
	Timeout time.Duration // Per-symbol timeout (default: 60s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers: 10,
		Timeout: 60 * time.Second,
	}
}

// progressEvery is how many completed symbols pass between progress logs.
const progressEvery = 50

// Enricher fetches per-symbol data concurrently with a bounded worker count.
type Enricher struct {
	cfg    Config
	source Source
	logger *slog.Logger
}

// New creates a new Enricher.
func New(cfg Config, source Source, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Enricher{
		cfg:    cfg,
		source: source,
		logger: logger,
	}
}

// AllTimeHighs fetches the all-time high of every symbol. Symbols that fail
// are logged and left out of the result.
func (e *Enricher) AllTimeHighs(ctx context.Context, symbols []string) map[string]model.AllTimeHigh {
	return collect(ctx, e, "ath", symbols, e.source.AllTimeHigh)
}

// Ratios fetches valuation ratios of every symbol. Symbols that fail are
// logged and left out of the result.
func (e *Enricher) Ratios(ctx context.Context, symbols []string) map[string]model.Ratios {
	return collect(ctx, e, "ratios", symbols, e.source.Ratios)
}

// collect runs fn for each symbol with at most cfg.Workers calls in flight.
func collect[T any](ctx context.Context, e *Enricher, kind string, symbols []string, fn func(context.Context, string) (T, error)) map[string]T {
	start := time.Now()
	results := make(map[string]T, len(symbols))
	if len(symbols) == 0 {
		return results
	}

	var mu sync.Mutex
	var done, fetched, errors atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for _, symbol := range symbols {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			v, err := fetchOne(gctx, e, symbol, fn)

			n := done.Add(1)
			if n%progressEvery == 0 {
				e.logger.Info("enrichment progress",
					"kind", kind,
					"done", n,
					"total", len(symbols),
				)
			}

			if err != nil {
				e.logger.Warn("failed to enrich symbol",
					"kind", kind,
					"symbol", symbol,
					"error", err,
				)
				errors.Add(1)
				return nil
			}

			mu.Lock()
			results[symbol] = v
			mu.Unlock()
			fetched.Add(1)
			return nil
		})
	}

	_ = g.Wait()

	e.logger.Info("enrichment complete",
		"kind", kind,
		"symbols", len(symbols),
		"fetched", fetched.Load(),
		"errors", errors.Load(),
		"duration", time.Since(start),
	)

	return results
}

func fetchOne[T any](ctx context.Context, e *Enricher, symbol string, fn func(context.Context, string) (T, error)) (T, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	v, err := fn(ctx, symbol)

	if e.cfg.Delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(e.cfg.Delay):
		}
	}

	return v, err
}
