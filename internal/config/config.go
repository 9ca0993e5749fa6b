package config

import (
	"fmt"
	"time"
)

// Config is the root configuration shared by every job binary.
type Config struct {
	Database    DBConfig          `yaml:"database"`
	HTTP        HTTPConfig        `yaml:"http"`
	Proxy       ProxyConfig       `yaml:"proxy"`
	Browser     BrowserConfig     `yaml:"browser"`
	Enrich      EnrichConfig      `yaml:"enrich"`
	Writer      WriterConfig      `yaml:"writer"`
	AWS         AWSConfig         `yaml:"aws"`
	Sources     SourcesConfig     `yaml:"sources"`
	Healthcheck HealthcheckConfig `yaml:"healthcheck"`
	Mail        MailConfig        `yaml:"mail"`
	Logging     LoggingConfig     `yaml:"logging"`
	Output      OutputConfig      `yaml:"output"`
}

// DBConfig holds a single PostgreSQL connection.
// URL takes precedence over the discrete fields when set.
type DBConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// HTTPConfig tunes the outbound fetch client.
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	UserAgents        []string      `yaml:"user_agents"`
}

// ProxyConfig describes an optional upstream proxy for scraping traffic.
type ProxyConfig struct {
	Type string `yaml:"type"` // socks5, http, https
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// URL returns the proxy URL understood by net/http and Chrome.
func (p ProxyConfig) URL() string {
	scheme := p.Type
	if scheme == "https" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, p.Host, p.Port)
}

// BrowserConfig controls the headless Chrome renderer.
type BrowserConfig struct {
	Disabled        bool          `yaml:"disabled"`
	ExecPath        string        `yaml:"exec_path"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout"`
	Attempts        int           `yaml:"attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
}

// EnrichConfig bounds the per-symbol fan-out.
type EnrichConfig struct {
	Workers int           `yaml:"workers"`
	Delay   time.Duration `yaml:"delay"`
}

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// AWSConfig holds DynamoDB settings.
type AWSConfig struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // optional, e.g. DynamoDB Local
}

// SourcesConfig holds credentials and endpoints of the data sources.
type SourcesConfig struct {
	FMPAPIKey string `yaml:"fmp_api_key"`
}

// HealthcheckConfig holds the healthchecks.io ping URL.
type HealthcheckConfig struct {
	URL string `yaml:"url"`
}

// MailConfig holds alert email settings.
type MailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	To           string `yaml:"to"`
	ResendAPIKey string `yaml:"resend_api_key"`
	From         string `yaml:"from"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`
}

// OutputConfig holds the directory for JSON and CSV artifacts.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}
