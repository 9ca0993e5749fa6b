// Package etf syncs the StockAnalysis ETF screener into a store.
//
// Each run:
//   - Fetches the full screener (one JSON document, ~4000 ETFs)
//   - Archives ETFs that disappeared since the previous run
//   - Upserts every ETF by ticker
//   - Rebuilds market statistics, recent launches and top movers per period
package etf
