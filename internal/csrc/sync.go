package csrc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/market-etl/internal/model"
)

// suspendMarker selects purchase suspension notices by their description.
const suspendMarker = "暂停"

// Source provides announcements and their HTML views.
type Source interface {
	Announcements(ctx context.Context, from, to time.Time) ([]Announcement, int, error)
	Disclosure(ctx context.Context, uploadInfoID string) (string, error)
}

// QuotaStore persists quota rows. Rows older than the stored effective date
// are ignored by the store.
type QuotaStore interface {
	UpsertQuota(ctx context.Context, q model.FundQuota) error
}

// SyncConfig holds sync configuration.
type SyncConfig struct {
	DisclosureDelay time.Duration // Pause between disclosure pages (default: 500ms)
}

// Summary reports the outcome of a sync run.
type Summary struct {
	Fetched   int // announcements returned by the search
	Expected  int // total reported by the search
	Processed int // suspension notices parsed
	Success   int // quota rows stored
	Failed    int
	Holiday   int
	Duration  time.Duration
}

// NeedsAlert reports whether the run lost data.
func (s Summary) NeedsAlert() bool {
	return s.Fetched < s.Expected || s.Failed > 0
}

// AlertBody renders the summary for an alert email.
func (s Summary) AlertBody() string {
	var b strings.Builder
	b.WriteString("Fund quota sync completed with issues.\n\n")
	b.WriteString("Summary:\n")
	fmt.Fprintf(&b, "- Total fetched: %d\n", s.Fetched)
	fmt.Fprintf(&b, "- Expected: %d\n", s.Expected)
	fmt.Fprintf(&b, "- Success: %d\n", s.Success)
	fmt.Fprintf(&b, "- Failed: %d\n", s.Failed)
	fmt.Fprintf(&b, "- Holiday skipped: %d\n\n", s.Holiday)
	b.WriteString("Fetched < expected or failed > 0 means quota rows may be missing.\n")
	b.WriteString("Check logs for details.\n")
	return b.String()
}

// Sync loads suspension notices for a date range into a QuotaStore.
type Sync struct {
	cfg    SyncConfig
	source Source
	store  QuotaStore
	logger *slog.Logger
}

// NewSync creates a new Sync.
func NewSync(cfg SyncConfig, source Source, store QuotaStore, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DisclosureDelay < 0 {
		cfg.DisclosureDelay = 0
	}
	return &Sync{cfg: cfg, source: source, store: store, logger: logger}
}

// Run fetches every announcement uploaded between from and to and stores
// the quotas of the suspension notices. Per-announcement failures are
// counted; only cancellation or a store-wide failure is returned.
func (s *Sync) Run(ctx context.Context, from, to time.Time) (Summary, error) {
	start := time.Now()
	var sum Summary

	announcements, expected, err := s.source.Announcements(ctx, from, to)
	sum.Fetched = len(announcements)
	sum.Expected = expected
	if err != nil {
		return sum, fmt.Errorf("fetch announcements: %w", err)
	}

	s.logger.Info("processing announcements", "count", len(announcements))

	for _, a := range announcements {
		if !strings.Contains(a.ReportDesp, suspendMarker) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		if err := s.processOne(ctx, a, &sum); err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			sum.Failed++
			s.logger.Error("failed to process announcement",
				"upload_info_id", a.UploadInfoID,
				"fund", a.FundShortName,
				"error", err,
			)
		}

		if s.cfg.DisclosureDelay > 0 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(s.cfg.DisclosureDelay):
			}
		}
	}

	sum.Duration = time.Since(start)
	s.logger.Info("quota sync complete",
		"success", sum.Success,
		"holiday", sum.Holiday,
		"failed", sum.Failed,
		"fetched", sum.Fetched,
		"expected", sum.Expected,
		"duration", sum.Duration,
	)
	return sum, nil
}

func (s *Sync) processOne(ctx context.Context, a Announcement, sum *Summary) error {
	html, err := s.source.Disclosure(ctx, a.UploadInfoID)
	if err != nil {
		return err
	}

	d, err := ParseDisclosure(html)
	if err != nil {
		return err
	}
	sum.Processed++

	if d.Holiday {
		sum.Holiday++
		s.logger.Debug("skipping holiday notice", "upload_info_id", a.UploadInfoID)
		return nil
	}

	for _, sc := range d.Classes {
		if sc.Code == notAvailable {
			s.logger.Debug("missing code for share class", "name", sc.Name)
			continue
		}

		q, err := Normalize(sc, d.Company, d.BeginDate, a.UploadInfoID)
		if errors.Is(err, ErrInvalidCode) {
			s.logger.Error("invalid fund code", "code", sc.Code, "name", sc.Name)
			continue
		}
		if err != nil {
			// A bad date invalidates every class of the notice.
			return err
		}

		if err := s.store.UpsertQuota(ctx, q); err != nil {
			sum.Failed++
			s.logger.Error("failed to store quota", "fund_code", q.FundCode, "error", err)
			continue
		}
		sum.Success++
	}
	return nil
}
