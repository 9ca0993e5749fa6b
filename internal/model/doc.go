// Package model defines shared data types used across the ETL jobs.
//
// Conventions:
//   - JSON tags follow the field names of the upstream source (camelCase for
//     StockAnalysis, snake_case for enrichment and fund quota fields)
//   - Nullable numerics are pointers; nil means the source had no value
//   - Dates travel as YYYY-MM-DD strings, timestamps as time.Time in UTC
package model
