package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rickgao/market-etl/internal/app"
	"github.com/rickgao/market-etl/internal/csrc"
	"github.com/rickgao/market-etl/internal/fetch"
	"github.com/rickgao/market-etl/internal/notify"
)

const dateLayout = "2006-01-02"

func main() {
	var flags app.Flags
	flags.Register(flag.CommandLine)
	fromArg := flag.String("from", "", "first upload date, YYYY-MM-DD (default: today)")
	toArg := flag.String("to", "", "last upload date, YYYY-MM-DD (default: today)")
	flag.Parse()

	job, err := app.Setup("quotasync", flags)
	if err != nil {
		app.Fatal("quotasync", err)
	}

	ctx, cancel := job.Context()
	err = run(ctx, job, *fromArg, *toArg)
	cancel()
	os.Exit(job.Finish(err))
}

func run(ctx context.Context, job *app.Job, fromArg, toArg string) error {
	logger := job.Logger

	from, to, err := dateRange(fromArg, toArg, time.Now())
	if err != nil {
		return err
	}

	mailer := notify.NewMailer(job.Config.Mail, fetch.NewClient(
		fetch.WithLogger(logger),
		fetch.WithTimeout(30*time.Second),
	), logger)
	runID := job.Health.RunID()

	store, closePool, err := job.OpenPostgres(ctx)
	if err != nil {
		return alertFailure(ctx, mailer, logger, runID, err)
	}
	defer closePool()

	client := csrc.NewClient(job.HTTPClient(), csrc.WithLogger(logger))
	syncer := csrc.NewSync(csrc.SyncConfig{DisclosureDelay: 500 * time.Millisecond}, client, store, logger)

	err = syncQuotas(ctx, syncer, mailer, logger, runID, from, to)
	logger.Info("writer stats", "stats", store.Stats())
	return err
}

type quotaSyncer interface {
	Run(ctx context.Context, from, to time.Time) (csrc.Summary, error)
}

// syncQuotas runs one sync and mails an alert when quota rows may be
// missing or the run failed.
func syncQuotas(ctx context.Context, syncer quotaSyncer, mailer notify.Mailer, logger *slog.Logger, runID string, from, to time.Time) error {
	logger.Info("fetching announcements", "from", from.Format(dateLayout), "to", to.Format(dateLayout))

	sum, err := syncer.Run(ctx, from, to)
	if err != nil {
		return alertFailure(ctx, mailer, logger, runID, err)
	}

	if sum.NeedsAlert() {
		logger.Warn("quota sync incomplete", "fetched", sum.Fetched, "expected", sum.Expected, "failed", sum.Failed)
		notify.Alert(ctx, mailer, logger, alertIncomplete, sum.AlertBody())
	}
	return nil
}

const (
	alertIncomplete = "Fund quota sync alert: incomplete data or failures"
	alertCritical   = "Fund quota sync CRITICAL FAILURE"
)

// alertFailure mails the error unless the run was interrupted, and returns it.
func alertFailure(ctx context.Context, mailer notify.Mailer, logger *slog.Logger, runID string, err error) error {
	if ctx.Err() != nil {
		return err
	}
	notify.Alert(context.WithoutCancel(ctx), mailer, logger, alertCritical,
		fmt.Sprintf("The fund quota sync failed.\n\nError: %v\n\nRun id: %s\nCheck immediately.\n", err, runID),
	)
	return err
}

// dateRange parses the -from and -to flags. Empty values default to the
// current day.
func dateRange(fromArg, toArg string, now time.Time) (time.Time, time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from, to := today, today

	var err error
	if fromArg != "" {
		if from, err = time.ParseInLocation(dateLayout, fromArg, now.Location()); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -from %q: %w", fromArg, err)
		}
	}
	if toArg != "" {
		if to, err = time.ParseInLocation(dateLayout, toArg, now.Location()); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -to %q: %w", toArg, err)
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("-to %s is before -from %s", to.Format(dateLayout), from.Format(dateLayout))
	}
	return from, to, nil
}
