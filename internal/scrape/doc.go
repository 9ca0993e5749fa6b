// Package scrape extracts index constituents from listing pages.
//
// Parsers are pure functions over HTML strings so they can be tested
// against saved fixtures. Each source has a fallback chain: SlickCharts
// tries the rendered table, then the embedded script state, then the
// largest table on the page; StockAnalysis tries several row selectors.
package scrape
