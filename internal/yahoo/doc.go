// Package yahoo is a minimal Yahoo Finance client: daily and monthly price
// history from the chart API, and valuation ratios from quoteSummary.
//
// quoteSummary requires a crumb bound to a session cookie. The client
// obtains both lazily and refreshes the crumb when Yahoo rejects it.
package yahoo
