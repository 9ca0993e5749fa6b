// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Every job can also run without a file: .env and .env.local are loaded first,
// then well-known variables (DATABASE_URL, PROXY_HOST, HEALTHCHECKS_URL, ...)
// fill any field the file left empty.
package config
