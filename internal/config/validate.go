package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return errors.New("http.max_retries must be >= 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return errors.New("http.requests_per_second must be >= 0")
	}

	switch c.Proxy.Type {
	case "socks5", "http", "https":
	default:
		return fmt.Errorf("proxy.type must be one of socks5, http, https, got %q", c.Proxy.Type)
	}
	if c.Proxy.Port < 1 || c.Proxy.Port > 65535 {
		return fmt.Errorf("proxy.port must be between 1 and 65535, got %d", c.Proxy.Port)
	}

	if c.Browser.Attempts < 1 {
		return errors.New("browser.attempts must be >= 1")
	}
	if c.Enrich.Workers < 1 {
		return errors.New("enrich.workers must be >= 1")
	}
	// DynamoDB BatchWriteItem accepts at most 25 requests.
	if c.Writer.BatchSize < 1 || c.Writer.BatchSize > 25 {
		return fmt.Errorf("writer.batch_size must be between 1 and 25, got %d", c.Writer.BatchSize)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// RequireDatabaseURL reports an error unless DATABASE_URL (database.url) is set.
func (c *Config) RequireDatabaseURL() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required (set DATABASE_URL)")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.URL == "" {
		if db.Host == "" {
			return fmt.Errorf("%s.host is required", prefix)
		}
		if db.Name == "" {
			return fmt.Errorf("%s.name is required", prefix)
		}
		if db.User == "" {
			return fmt.Errorf("%s.user is required", prefix)
		}
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
