package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/market-etl/internal/csrc"
	"github.com/rickgao/market-etl/internal/fetch"
	"github.com/rickgao/market-etl/internal/model"
)

func TestDateRange(t *testing.T) {
	now := time.Date(2025, 3, 14, 16, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		from, to string
		wantFrom string
		wantTo   string
		wantErr  bool
	}{
		{"defaults to today", "", "", "2025-03-14", "2025-03-14", false},
		{"explicit range", "2025-03-01", "2025-03-08", "2025-03-01", "2025-03-08", false},
		{"from only", "2025-03-10", "", "2025-03-10", "2025-03-14", false},
		{"bad date", "2025/03/01", "", "", "", true},
		{"reversed", "2025-03-09", "2025-03-01", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := dateRange(tt.from, tt.to, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("dateRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := from.Format(dateLayout); got != tt.wantFrom {
				t.Errorf("from = %s, want %s", got, tt.wantFrom)
			}
			if got := to.Format(dateLayout); got != tt.wantTo {
				t.Errorf("to = %s, want %s", got, tt.wantTo)
			}
		})
	}
}

type sentMail struct {
	subject, body string
}

type recordingMailer struct {
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, subject, body string) error {
	m.sent = append(m.sent, sentMail{subject, body})
	return nil
}

type stubSource struct {
	announcements []csrc.Announcement
	expected      int
}

func (s stubSource) Announcements(context.Context, time.Time, time.Time) ([]csrc.Announcement, int, error) {
	return s.announcements, s.expected, nil
}

func (s stubSource) Disclosure(context.Context, string) (string, error) {
	return "", errors.New("http error 404")
}

type nopStore struct{}

func (nopStore) UpsertQuota(context.Context, model.FundQuota) error { return nil }

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	day        = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
)

func TestSyncQuotas_Incomplete(t *testing.T) {
	source := stubSource{
		expected:      3,
		announcements: []csrc.Announcement{{UploadInfoID: "a", ReportDesp: "恢复大额申购公告"}},
	}
	mailer := &recordingMailer{}

	err := syncQuotas(context.Background(), csrc.NewSync(csrc.SyncConfig{}, source, nopStore{}, testLogger), mailer, testLogger, "rid-1", day, day)
	if err != nil {
		t.Fatalf("syncQuotas() error = %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("mails sent = %d, want 1", len(mailer.sent))
	}
	if mailer.sent[0].subject != alertIncomplete {
		t.Errorf("subject = %q, want %q", mailer.sent[0].subject, alertIncomplete)
	}
	if !strings.Contains(mailer.sent[0].body, "Expected: 3") {
		t.Errorf("body = %q, want expected count", mailer.sent[0].body)
	}
}

func TestSyncQuotas_Complete(t *testing.T) {
	mailer := &recordingMailer{}

	err := syncQuotas(context.Background(), csrc.NewSync(csrc.SyncConfig{}, stubSource{}, nopStore{}, testLogger), mailer, testLogger, "rid-1", day, day)
	if err != nil {
		t.Fatalf("syncQuotas() error = %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("mails sent = %d, want 0", len(mailer.sent))
	}
}

func TestSyncQuotas_SiteDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := csrc.NewClient(
		fetch.NewClient(fetch.WithRetries(3, time.Millisecond)),
		csrc.WithBaseURL(server.URL),
		csrc.WithPageDelay(0),
		csrc.WithPageRetry(time.Millisecond, 2),
		csrc.WithLogger(testLogger),
	)
	mailer := &recordingMailer{}

	err := syncQuotas(context.Background(), csrc.NewSync(csrc.SyncConfig{}, client, nopStore{}, testLogger), mailer, testLogger, "rid-1", day, day)
	if !errors.Is(err, csrc.ErrSearchFailed) {
		t.Fatalf("syncQuotas() error = %v, want ErrSearchFailed", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("mails sent = %d, want 1", len(mailer.sent))
	}
	if mailer.sent[0].subject != alertCritical {
		t.Errorf("subject = %q, want %q", mailer.sent[0].subject, alertCritical)
	}
	if !strings.Contains(mailer.sent[0].body, "rid-1") {
		t.Errorf("body = %q, want run id", mailer.sent[0].body)
	}
}

func TestAlertFailure_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mailer := &recordingMailer{}

	err := alertFailure(ctx, mailer, testLogger, "rid-1", context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("alertFailure() = %v, want context.Canceled", err)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("mails sent = %d, want 0 after interrupt", len(mailer.sent))
	}
}
