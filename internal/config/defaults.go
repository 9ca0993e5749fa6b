package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultDBHost            = "localhost"
	DefaultDBPort            = 5432
	DefaultDBName            = "postgres"
	DefaultDBUser            = "postgres"
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultRetryBackoff      = 2 * time.Second
	DefaultRequestsPerSecond = 2.0
	DefaultBurst             = 1
	DefaultProxyType         = "socks5"
	DefaultProxyHost         = "127.0.0.1"
	DefaultProxyPort         = 51837
	DefaultPageLoadTimeout   = 30 * time.Second
	DefaultBrowserAttempts   = 3
	DefaultBrowserRetryDelay = 2 * time.Second
	DefaultEnrichWorkers     = 10
	DefaultBatchSize         = 25
	DefaultAWSRegion         = "us-east-1"
	DefaultSMTPHost          = "smtp.gmail.com"
	DefaultSMTPPort          = 587
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultOutputDir         = "data"
)

// DefaultUserAgents is the pool a fetch client picks its user agent from.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
}

func (c *Config) applyDefaults() {
	// Database defaults
	if c.Database.URL == "" {
		if c.Database.Host == "" {
			c.Database.Host = DefaultDBHost
		}
		if c.Database.Name == "" {
			c.Database.Name = DefaultDBName
		}
		if c.Database.User == "" {
			c.Database.User = DefaultDBUser
		}
	}
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// HTTP defaults
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = DefaultHTTPTimeout
	}
	if c.HTTP.MaxRetries == 0 {
		c.HTTP.MaxRetries = DefaultMaxRetries
	}
	if c.HTTP.RetryBackoff == 0 {
		c.HTTP.RetryBackoff = DefaultRetryBackoff
	}
	if c.HTTP.RequestsPerSecond == 0 {
		c.HTTP.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.HTTP.Burst == 0 {
		c.HTTP.Burst = DefaultBurst
	}
	if len(c.HTTP.UserAgents) == 0 {
		c.HTTP.UserAgents = append([]string(nil), DefaultUserAgents...)
	}

	// Proxy defaults
	if c.Proxy.Type == "" {
		c.Proxy.Type = DefaultProxyType
	}
	if c.Proxy.Host == "" {
		c.Proxy.Host = DefaultProxyHost
	}
	if c.Proxy.Port == 0 {
		c.Proxy.Port = DefaultProxyPort
	}

	// Browser defaults
	if c.Browser.PageLoadTimeout == 0 {
		c.Browser.PageLoadTimeout = DefaultPageLoadTimeout
	}
	if c.Browser.Attempts == 0 {
		c.Browser.Attempts = DefaultBrowserAttempts
	}
	if c.Browser.RetryDelay == 0 {
		c.Browser.RetryDelay = DefaultBrowserRetryDelay
	}

	if c.Enrich.Workers == 0 {
		c.Enrich.Workers = DefaultEnrichWorkers
	}
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.AWS.Region == "" {
		c.AWS.Region = DefaultAWSRegion
	}

	// Mail defaults
	if c.Mail.SMTPHost == "" {
		c.Mail.SMTPHost = DefaultSMTPHost
	}
	if c.Mail.SMTPPort == 0 {
		c.Mail.SMTPPort = DefaultSMTPPort
	}
	if c.Mail.To == "" {
		c.Mail.To = c.Mail.User
	}
	if c.Mail.From == "" {
		c.Mail.From = c.Mail.User
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Output.Dir == "" {
		c.Output.Dir = DefaultOutputDir
	}
}
