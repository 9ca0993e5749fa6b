// Package enrich annotates index constituents with per-symbol market data.
//
// The Enricher:
//   - Fans out one request per symbol with a bounded worker count
//   - Logs and skips symbols that fail
//   - Reports progress every 50 symbols and a summary at the end
package enrich
