package database

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rickgao/market-etl/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
// A configured URL is returned unchanged.
func BuildConnString(cfg config.DBConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}

// ParseURL splits a postgres:// or postgresql:// URL into its parts.
// It is used for logging and for tools that need discrete fields.
func ParseURL(raw string) (config.DBConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return config.DBConfig{}, fmt.Errorf("parse database url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return config.DBConfig{}, fmt.Errorf("parse database url: unsupported scheme %q", u.Scheme)
	}

	cfg := config.DBConfig{
		URL:     raw,
		Host:    u.Hostname(),
		Port:    5432,
		Name:    strings.TrimPrefix(u.Path, "/"),
		SSLMode: u.Query().Get("sslmode"),
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return config.DBConfig{}, fmt.Errorf("parse database url: invalid port %q", p)
		}
		cfg.Port = port
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	if cfg.Host == "" {
		return config.DBConfig{}, fmt.Errorf("parse database url: missing host")
	}
	return cfg, nil
}
