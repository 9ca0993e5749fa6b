package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeConfig configures the headless Chrome renderer.
type ChromeConfig struct {
	ExecPath        string
	UserAgent       string
	ProxyURL        string
	DisableJS       bool
	WaitSelector    string // CSS selector that signals the data has rendered
	PageLoadTimeout time.Duration
	WaitTimeout     time.Duration
	Attempts        int
	RetryDelay      time.Duration
}

// DefaultChromeConfig returns sensible defaults.
func DefaultChromeConfig() ChromeConfig {
	return ChromeConfig{
		WaitSelector:    "table tbody tr",
		PageLoadTimeout: 30 * time.Second,
		WaitTimeout:     20 * time.Second,
		Attempts:        3,
		RetryDelay:      2 * time.Second,
	}
}

// ChromeRenderer renders pages in a fresh headless Chrome per attempt.
type ChromeRenderer struct {
	cfg    ChromeConfig
	logger *slog.Logger
}

// NewChromeRenderer creates a ChromeRenderer. Zero fields of cfg take defaults.
func NewChromeRenderer(cfg ChromeConfig, logger *slog.Logger) *ChromeRenderer {
	def := DefaultChromeConfig()
	if cfg.PageLoadTimeout == 0 {
		cfg.PageLoadTimeout = def.PageLoadTimeout
	}
	if cfg.WaitTimeout == 0 {
		cfg.WaitTimeout = def.WaitTimeout
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = def.Attempts
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromeRenderer{cfg: cfg, logger: logger}
}

// Render loads url and returns the page HTML, retrying with a new browser.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.Attempts; attempt++ {
		page, err := r.renderOnce(ctx, url)
		if err == nil {
			return page, nil
		}
		lastErr = err
		r.logger.Warn("chrome render failed",
			"url", url,
			"attempt", attempt,
			"max_attempts", r.cfg.Attempts,
			"error", err,
		)
		if attempt == r.cfg.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.cfg.RetryDelay):
		}
	}
	return "", fmt.Errorf("chrome render %s after %d attempts: %w", url, r.cfg.Attempts, lastErr)
}

func (r *ChromeRenderer) renderOnce(ctx context.Context, url string) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	navCtx, cancelNav := context.WithTimeout(tabCtx, r.cfg.PageLoadTimeout)
	err := chromedp.Run(navCtx, chromedp.Navigate(url))
	cancelNav()
	if err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}

	if r.cfg.WaitSelector != "" {
		waitCtx, cancelWait := context.WithTimeout(tabCtx, r.cfg.WaitTimeout)
		err := chromedp.Run(waitCtx, chromedp.WaitReady(r.cfg.WaitSelector, chromedp.ByQuery))
		cancelWait()
		if err != nil {
			// Embedded script data may still be in the source.
			r.logger.Warn("wait selector not found, using page source",
				"url", url,
				"selector", r.cfg.WaitSelector,
				"error", err,
			)
		}
	}

	var html string
	htmlCtx, cancelHTML := context.WithTimeout(tabCtx, 10*time.Second)
	defer cancelHTML()
	if err := chromedp.Run(htmlCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page source: %w", err)
	}
	return html, nil
}

func (r *ChromeRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	blink := "imagesEnabled=false"
	if r.cfg.DisableJS {
		blink += ",scriptEnabled=false"
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("blink-settings", blink),
	)
	if r.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.cfg.UserAgent))
	}
	if r.cfg.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(r.cfg.ProxyURL))
	}
	if r.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.cfg.ExecPath))
	}
	return opts
}
