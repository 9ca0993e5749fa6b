package constituents

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rickgao/market-etl/internal/browser"
	"github.com/rickgao/market-etl/internal/enrich"
	"github.com/rickgao/market-etl/internal/model"
	"github.com/rickgao/market-etl/internal/output"
	"github.com/rickgao/market-etl/internal/scrape"
)

// Store persists enriched constituents.
type Store interface {
	UpsertConstituents(ctx context.Context, indexKey string, rows []model.Constituent) (int, error)
}

// Config holds pipeline configuration.
type Config struct {
	OutputDir  string        // Directory for JSON files (default: data)
	IndexDelay time.Duration // Pause between indexes (default: 2s)
	SkipEnrich bool          // Skip ATH and ratio enrichment
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		OutputDir:  "data",
		IndexDelay: 2 * time.Second,
	}
}

// Result summarizes one index run.
type Result struct {
	Index              model.Index
	SlickChartsCount   int
	StockAnalysisCount int
	Parser             string
	Comparison         Comparison
	Stored             int
	Duration           time.Duration
	Err                error

	rows []model.Constituent
}

// Consistent reports whether both sources listed the same symbols.
func (r Result) Consistent() bool {
	return r.Err == nil && r.Comparison.Consistent
}

// Pipeline scrapes, compares, enriches and saves index constituents.
type Pipeline struct {
	cfg           Config
	slickCharts   browser.Renderer
	stockAnalysis browser.Renderer
	enricher      *enrich.Enricher
	store         Store
	logger        *slog.Logger
}

// New creates a new Pipeline. enricher and store may be nil.
func New(cfg Config, slickCharts, stockAnalysis browser.Renderer, enricher *enrich.Enricher, store Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "data"
	}
	return &Pipeline{
		cfg:           cfg,
		slickCharts:   slickCharts,
		stockAnalysis: stockAnalysis,
		enricher:      enricher,
		store:         store,
		logger:        logger,
	}
}

// Run processes indexes in order and returns one Result per index. A failing
// index is recorded in its Result and does not stop the run. The returned
// error is non-nil only when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, indexes []model.Index) ([]Result, error) {
	results := make([]Result, 0, len(indexes))

	for i, idx := range indexes {
		if i > 0 && p.cfg.IndexDelay > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(p.cfg.IndexDelay):
			}
		}

		res := p.processIndex(ctx, idx)
		if res.Err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			p.logger.Error("failed to process index", "index", idx.Key, "error", res.Err)
		}
		results = append(results, res)
	}

	if !p.cfg.SkipEnrich && p.enricher != nil {
		p.enrichAll(ctx, results)
	}

	if p.store != nil {
		for i := range results {
			p.storeIndex(ctx, &results[i])
		}
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// processIndex scrapes both sources for one index, merges market caps,
// saves both files and compares the symbol sets.
func (p *Pipeline) processIndex(ctx context.Context, idx model.Index) Result {
	start := time.Now()
	res := Result{Index: idx}
	logger := p.logger.With("index", idx.Key)

	logger.Info("processing index", "name", idx.Name)

	slick, parser, err := p.fetchSlickCharts(ctx, idx)
	if err != nil {
		logger.Warn("slickcharts scrape failed", "error", err)
	}
	res.Parser = parser

	sa, saErr := p.fetchStockAnalysis(ctx, idx)
	if saErr != nil {
		logger.Warn("stockanalysis scrape failed", "error", saErr)
	}

	if len(slick) == 0 && len(sa) == 0 {
		res.Err = fmt.Errorf("no constituents from any source: slickcharts: %v; stockanalysis: %v", err, saErr)
		res.Duration = time.Since(start)
		return res
	}

	if len(slick) > 0 && len(sa) > 0 {
		n := MergeMarketCap(slick, sa)
		logger.Info("merged market caps", "updated", n, "total", len(slick))
	}

	if len(slick) > 0 {
		if err := output.WriteJSON(p.path(idx.SlickChartsFile), slick); err != nil {
			logger.Error("failed to save slickcharts data", "error", err)
		}
	}
	if len(sa) > 0 {
		if err := output.WriteJSON(p.path(idx.StockAnalysisFile), sa); err != nil {
			logger.Error("failed to save stockanalysis data", "error", err)
		}
	}

	res.SlickChartsCount = len(slick)
	res.StockAnalysisCount = len(sa)
	res.Comparison = Compare(slick, sa)
	res.rows = slick
	res.Duration = time.Since(start)

	p.logComparison(logger, idx, res.Comparison)

	logger.Info("index processed",
		"slickcharts", res.SlickChartsCount,
		"stockanalysis", res.StockAnalysisCount,
		"parser", res.Parser,
		"duration", res.Duration,
	)
	return res
}

// fetchSlickCharts renders the SlickCharts page and runs the parser chain.
// For the S&P 500 the Wikipedia member list is used when every parser fails.
func (p *Pipeline) fetchSlickCharts(ctx context.Context, idx model.Index) ([]model.Constituent, string, error) {
	html, err := p.slickCharts.Render(ctx, idx.SlickChartsURL)
	if err == nil {
		rows, parser, perr := scrape.ParseSlickChartsPage(html)
		if perr == nil {
			p.checkCount(idx, "slickcharts", len(rows))
			return rows, parser, nil
		}
		err = fmt.Errorf("parse slickcharts: %w", perr)
	}

	if idx.Key != "sp500" || ctx.Err() != nil {
		return nil, "", err
	}

	p.logger.Warn("falling back to wikipedia member list", "index", idx.Key, "error", err)
	html, werr := p.stockAnalysis.Render(ctx, scrape.WikipediaSP500URL)
	if werr != nil {
		return nil, "", fmt.Errorf("%w; wikipedia: %v", err, werr)
	}
	rows, werr := scrape.ParseWikipediaSP500(html)
	if werr != nil {
		return nil, "", fmt.Errorf("%w; wikipedia: %v", err, werr)
	}
	return rows, "wikipedia", nil
}

func (p *Pipeline) fetchStockAnalysis(ctx context.Context, idx model.Index) ([]model.Constituent, error) {
	html, err := p.stockAnalysis.Render(ctx, idx.StockAnalysisURL)
	if err != nil {
		return nil, err
	}
	rows, err := scrape.ParseStockAnalysisTable(html)
	if err != nil {
		return nil, fmt.Errorf("parse stockanalysis: %w", err)
	}
	p.checkCount(idx, "stockanalysis", len(rows))
	return rows, nil
}

func (p *Pipeline) checkCount(idx model.Index, source string, got int) {
	if idx.ExpectedCount > 0 && got != idx.ExpectedCount {
		p.logger.Warn("unexpected constituent count",
			"index", idx.Key,
			"source", source,
			"got", got,
			"expected", idx.ExpectedCount,
		)
	}
}

func (p *Pipeline) logComparison(logger *slog.Logger, idx model.Index, c Comparison) {
	logger.Info("compared sources",
		"slickcharts", c.CountA,
		"stockanalysis", c.CountB,
		"common", c.Common,
		"consistency_pct", fmt.Sprintf("%.1f", c.Consistency),
	)
	if c.Consistent {
		return
	}
	logger.Error("sources inconsistent",
		"name", idx.Name,
		"missing_from_stockanalysis", c.OnlyInA,
		"missing_from_slickcharts", c.OnlyInB,
	)
}

// enrichAll fetches ATH and ratios once for the union of all symbols,
// applies them to every index and re-saves the SlickCharts files.
func (p *Pipeline) enrichAll(ctx context.Context, results []Result) {
	lists := make([][]model.Constituent, 0, len(results))
	for _, r := range results {
		lists = append(lists, r.rows)
	}
	symbols := UnionSymbols(lists...)
	if len(symbols) == 0 {
		return
	}

	p.logger.Info("enriching constituents", "symbols", len(symbols))
	ratios := p.enricher.Ratios(ctx, symbols)
	ath := p.enricher.AllTimeHighs(ctx, symbols)

	for _, r := range results {
		if len(r.rows) == 0 {
			continue
		}
		athN := ApplyATH(r.rows, ath)
		ratioN := ApplyRatios(r.rows, ratios)
		p.logger.Info("applied enrichment",
			"index", r.Index.Key,
			"ath", athN,
			"ratios", ratioN,
			"total", len(r.rows),
		)
		if err := output.WriteJSON(p.path(r.Index.SlickChartsFile), r.rows); err != nil {
			p.logger.Error("failed to save enriched data", "index", r.Index.Key, "error", err)
		}
	}
}

func (p *Pipeline) storeIndex(ctx context.Context, r *Result) {
	if len(r.rows) == 0 {
		return
	}
	n, err := p.store.UpsertConstituents(ctx, r.Index.Key, r.rows)
	r.Stored = n
	if err != nil {
		p.logger.Error("failed to store constituents", "index", r.Index.Key, "stored", n, "error", err)
		return
	}
	p.logger.Info("stored constituents", "index", r.Index.Key, "rows", n)
}

// Rows returns the SlickCharts rows of a result (enriched when enrichment ran).
func (r Result) Rows() []model.Constituent {
	return r.rows
}

func (p *Pipeline) path(name string) string {
	return filepath.Join(p.cfg.OutputDir, name)
}
