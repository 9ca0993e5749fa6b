package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rickgao/market-etl/internal/fetch"
)

// Renderer returns the HTML of a page after it has loaded.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, url string) (string, error)

func (f RendererFunc) Render(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// ErrBlocked is returned when a page is a bot challenge instead of content.
var ErrBlocked = errors.New("page blocked by bot protection")

// HTTPRenderer fetches pages with a plain HTTP client. It serves pages that
// are rendered server side, and acts as the fallback when Chrome is unavailable.
type HTTPRenderer struct {
	client *fetch.Client
	logger *slog.Logger
}

// NewHTTPRenderer creates an HTTPRenderer.
func NewHTTPRenderer(client *fetch.Client, logger *slog.Logger) *HTTPRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPRenderer{client: client, logger: logger}
}

// Render fetches url and rejects bot-challenge pages without a table.
func (r *HTTPRenderer) Render(ctx context.Context, url string) (string, error) {
	page, err := r.client.GetText(ctx, url, nil)
	if err != nil {
		return "", fmt.Errorf("http render %s: %w", url, err)
	}

	if found := fetch.BlockedIndicators(page); len(found) > 0 {
		if !strings.Contains(strings.ToLower(page), "<table") {
			return "", fmt.Errorf("http render %s: %w (%s)", url, ErrBlocked, strings.Join(found, ", "))
		}
		r.logger.Warn("possible blocking indicators on page with table", "url", url, "indicators", found)
	}

	return page, nil
}

// FallbackRenderer tries each renderer in order and returns the first
// non-empty page.
type FallbackRenderer struct {
	renderers []Renderer
	logger    *slog.Logger
}

// NewFallbackRenderer creates a FallbackRenderer. Nil renderers are skipped.
func NewFallbackRenderer(logger *slog.Logger, renderers ...Renderer) *FallbackRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	var rs []Renderer
	for _, r := range renderers {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return &FallbackRenderer{renderers: rs, logger: logger}
}

// Render tries every renderer until one yields a page.
func (f *FallbackRenderer) Render(ctx context.Context, url string) (string, error) {
	var errs []error
	for i, r := range f.renderers {
		page, err := r.Render(ctx, url)
		if err == nil && strings.TrimSpace(page) != "" {
			return page, nil
		}
		if err == nil {
			err = fmt.Errorf("renderer %d returned an empty page", i)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		f.logger.Warn("renderer failed, trying next", "url", url, "renderer", i, "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("render %s: no renderers configured", url)
	}
	return "", fmt.Errorf("render %s: %w", url, errors.Join(errs...))
}
