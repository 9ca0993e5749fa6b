package notify

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/rickgao/market-etl/internal/fetch"
)

// Healthcheck pings a healthchecks.io check. Every ping of one run carries
// the same run id so start and finish pair up in the dashboard.
type Healthcheck struct {
	url    string
	rid    string
	http   *fetch.Client
	logger *slog.Logger
}

// NewHealthcheck creates a pinger for checkURL. An empty URL disables
// pinging.
func NewHealthcheck(checkURL string, httpClient *fetch.Client, logger *slog.Logger) *Healthcheck {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Healthcheck{
		url:    strings.TrimRight(checkURL, "/"),
		rid:    uuid.NewString(),
		http:   httpClient,
		logger: logger,
	}
	if h.url == "" {
		logger.Warn("healthcheck url not set, skipping health pings")
	}
	return h
}

// RunID returns the run id attached to every ping.
func (h *Healthcheck) RunID() string {
	return h.rid
}

// Start signals that the job started.
func (h *Healthcheck) Start(ctx context.Context) {
	h.ping(ctx, "/start", "")
}

// Success signals that the job finished.
func (h *Healthcheck) Success(ctx context.Context) {
	h.ping(ctx, "", "")
}

// Fail signals that the job failed. msg is attached as the ping body.
func (h *Healthcheck) Fail(ctx context.Context, msg string) {
	h.ping(ctx, "/fail", msg)
}

func (h *Healthcheck) ping(ctx context.Context, suffix, body string) {
	if h.url == "" {
		return
	}
	q := url.Values{}
	q.Set("rid", h.rid)
	target := h.url + suffix + "?" + q.Encode()

	var err error
	if body != "" {
		_, err = h.http.Post(ctx, target, "text/plain; charset=utf-8", []byte(body))
	} else {
		_, err = h.http.Get(ctx, target, nil)
	}
	if err != nil {
		h.logger.Warn("failed to ping healthcheck", "status", pingStatus(suffix), "error", err)
		return
	}
	h.logger.Debug("healthcheck pinged", "status", pingStatus(suffix))
}

func pingStatus(suffix string) string {
	if suffix == "" {
		return "success"
	}
	return strings.TrimPrefix(suffix, "/")
}
