package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/market-etl/internal/model"
	"github.com/rickgao/market-etl/internal/yahoo"
)

// Fetcher returns price bars for a symbol.
type Fetcher interface {
	Chart(ctx context.Context, symbol string, q yahoo.ChartQuery) ([]model.Bar, error)
}

// Result summarizes one index.
type Result struct {
	Index   string
	Fetched int
	Added   int
	Total   int
	Err     error
}

// Job fetches monthly bars and writes the history documents.
type Job struct {
	fetcher Fetcher
	store   FileStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewJob creates a new Job.
func NewJob(fetcher Fetcher, store FileStore, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{fetcher: fetcher, store: store, logger: logger, now: time.Now}
}

// Run processes each index for mode. Failing indexes are recorded in their
// Result; the returned error is non-nil only when ctx is cancelled.
func (j *Job) Run(ctx context.Context, mode Mode, indexes []model.Index) ([]Result, error) {
	results := make([]Result, 0, len(indexes))
	for _, idx := range indexes {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := j.runIndex(ctx, mode, idx)
		if res.Err != nil {
			j.logger.Error("failed to update index history", "index", idx.Key, "error", res.Err)
		}
		results = append(results, res)
	}
	return results, ctx.Err()
}

func (j *Job) runIndex(ctx context.Context, mode Mode, idx model.Index) Result {
	res := Result{Index: idx.Key}
	logger := j.logger.With("index", idx.Key, "ticker", idx.YahooTicker, "mode", mode.Name)

	q := yahoo.ChartQuery{Interval: "1mo"}
	if mode.Full() {
		q.Range = "max"
	} else {
		q.Start = mode.Start
		q.End = mode.End
	}

	bars, err := j.fetcher.Chart(ctx, idx.YahooTicker, q)
	if err != nil {
		res.Err = fmt.Errorf("fetch history: %w", err)
		return res
	}
	months := MonthlyFromBars(bars)
	res.Fetched = len(months)
	logger.Info("fetched monthly bars", "count", len(months))

	now := j.now()
	var (
		doc   *Document
		found bool
	)
	if mode.Update {
		doc, found, err = j.store.Load(idx.Key)
		if err != nil {
			res.Err = err
			return res
		}
	}

	if found {
		res.Added = doc.Merge(months, now)
		if res.Added == 0 {
			logger.Info("no new months to add")
			res.Total = doc.TotalMonths
			return res
		}
	} else {
		if mode.Update {
			logger.Info("no existing history, creating new file")
		}
		doc = NewDocument(idx, months, now)
		res.Added = len(months)
	}

	if err := j.store.Save(doc); err != nil {
		res.Err = err
		return res
	}
	res.Total = doc.TotalMonths
	logger.Info("saved index history",
		"path", j.store.Path(idx.Key),
		"added", res.Added,
		"total_months", res.Total,
		"years", len(doc.YearlyReturns),
	)
	return res
}
