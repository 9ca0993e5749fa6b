// Package app holds the start-up and shutdown steps shared by the job
// binaries: env files, config, logging, signals and healthcheck pings.
package app

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/market-etl/internal/config"
	"github.com/rickgao/market-etl/internal/fetch"
	"github.com/rickgao/market-etl/internal/logging"
	"github.com/rickgao/market-etl/internal/notify"
	"github.com/rickgao/market-etl/internal/version"
)

// pingTimeout bounds the final healthcheck ping, which runs even after the
// job context was cancelled.
const pingTimeout = 15 * time.Second

// Flags are the flags every job accepts.
type Flags struct {
	ConfigPath string
	LogLevel   string
	Proxy      bool
}

// Register adds -config, -log-level and -proxy to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "path to YAML config file (optional, env only when empty)")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	fs.BoolVar(&f.Proxy, "proxy", false, "route data requests through the configured proxy")
}

// Job is the runtime of one job binary.
type Job struct {
	Name   string
	Config *config.Config
	Logger *slog.Logger
	Health *notify.Healthcheck

	flags    Flags
	start    time.Time
	closeLog func() error
}

// Setup loads .env files and the config, builds the logger, and sends the
// healthcheck start ping.
func Setup(name string, flags Flags) (*Job, error) {
	if err := config.LoadEnvFiles(config.DefaultEnvFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.LoadAndValidate(flags.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.LogLevel != "" {
		cfg.Logging.Level = flags.LogLevel
	}

	logger, closeLog, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	health := notify.NewHealthcheck(cfg.Healthcheck.URL, fetch.NewClient(
		fetch.WithLogger(logger),
		fetch.WithTimeout(10*time.Second),
		fetch.WithRetries(2, time.Second),
		fetch.WithUserAgent(version.UserAgent()),
	), logger)

	job := &Job{
		Name:     name,
		Config:   cfg,
		Logger:   logger,
		Health:   health,
		flags:    flags,
		start:    time.Now(),
		closeLog: closeLog,
	}

	logger.Info("starting "+name,
		"version", version.Version,
		"commit", version.Commit,
		"config", flags.ConfigPath,
		"run_id", health.RunID(),
		"proxy", job.ProxyURL(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	health.Start(ctx)

	return job, nil
}

// ProxyURL returns the configured proxy URL when -proxy was given, else "".
func (j *Job) ProxyURL() string {
	if !j.flags.Proxy {
		return ""
	}
	return j.Config.Proxy.URL()
}

// HTTPClient builds a fetch client from the HTTP and proxy settings.
func (j *Job) HTTPClient(opts ...fetch.ClientOption) *fetch.Client {
	base := []fetch.ClientOption{
		fetch.WithLogger(j.Logger),
		fetch.WithTimeout(j.Config.HTTP.Timeout),
		fetch.WithRetries(j.Config.HTTP.MaxRetries, j.Config.HTTP.RetryBackoff),
		fetch.WithRateLimit(j.Config.HTTP.RequestsPerSecond, j.Config.HTTP.Burst),
		fetch.WithUserAgents(j.Config.HTTP.UserAgents),
		fetch.WithProxy(j.ProxyURL()),
	}
	return fetch.NewClient(append(base, opts...)...)
}

// Context returns a context cancelled on SIGINT or SIGTERM.
func (j *Job) Context() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			j.Logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// Finish reports the outcome to the healthcheck, closes the log file and
// returns the process exit code.
func (j *Job) Finish(err error) int {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	code := 0
	duration := time.Since(j.start)
	if err != nil {
		j.Logger.Error(j.Name+" failed", "error", err, "duration", duration)
		j.Health.Fail(ctx, fmt.Sprintf("%s failed: %v", j.Name, err))
		code = 1
	} else {
		j.Logger.Info(j.Name+" finished", "duration", duration)
		j.Health.Success(ctx)
	}

	if cerr := j.closeLog(); cerr != nil {
		fmt.Fprintf(os.Stderr, "%s: close log file: %v\n", j.Name, cerr)
	}
	return code
}

// Fatal prints a start-up error, pings the healthcheck fail endpoint when
// HEALTHCHECKS_URL is set, and exits 1. It is used before a Job exists.
func Fatal(name string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
	pingSetupFailure(context.Background(), os.Getenv("HEALTHCHECKS_URL"), name, err)
	os.Exit(1)
}

func pingSetupFailure(ctx context.Context, checkURL, name string, err error) {
	if checkURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	health := notify.NewHealthcheck(checkURL, fetch.NewClient(
		fetch.WithTimeout(10*time.Second),
		fetch.WithRetries(2, time.Second),
		fetch.WithUserAgent(version.UserAgent()),
	), nil)
	health.Fail(ctx, fmt.Sprintf("%s failed to start: %v", name, err))
}
