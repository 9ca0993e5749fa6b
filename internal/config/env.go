package config

import (
	"strconv"
	"strings"
)

// applyEnv fills fields left empty by the config file from well-known
// environment variables. Values from the file always win.
func (c *Config) applyEnv(getenv func(string) string) {
	setString(&c.Database.URL, getenv("DATABASE_URL"))
	setString(&c.Database.Host, getenv("DB_HOST"))
	setInt(&c.Database.Port, getenv("DB_PORT"))
	setString(&c.Database.Name, getenv("DB_NAME"))
	setString(&c.Database.User, getenv("DB_USER"))
	setString(&c.Database.Password, getenv("DB_PASSWORD"))
	setString(&c.Database.SSLMode, getenv("DB_SSLMODE"))

	setString(&c.Proxy.Type, strings.ToLower(getenv("PROXY_TYPE")))
	setString(&c.Proxy.Host, getenv("PROXY_HOST"))
	setInt(&c.Proxy.Port, getenv("PROXY_PORT"))

	setString(&c.AWS.Region, getenv("AWS_REGION"))
	setString(&c.AWS.Endpoint, getenv("DYNAMODB_ENDPOINT"))

	setString(&c.Sources.FMPAPIKey, getenv("FMP_API_KEY"))
	setString(&c.Healthcheck.URL, getenv("HEALTHCHECKS_URL"))

	setString(&c.Mail.User, getenv("GMAIL_USER"))
	setString(&c.Mail.Password, getenv("GMAIL_APP_PASSWORD"))
	setString(&c.Mail.To, getenv("ALERT_EMAIL"))
	setString(&c.Mail.ResendAPIKey, getenv("RESEND_API_KEY"))
	setString(&c.Mail.From, getenv("FROM_EMAIL"))

	setString(&c.Logging.Level, getenv("LOG_LEVEL"))
	setString(&c.Output.Dir, getenv("OUTPUT_DIR"))
}

func setString(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func setInt(dst *int, v string) {
	if *dst != 0 || v == "" {
		return
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*dst = n
	}
}
