// Package constituents builds the index constituent lists.
//
// For each index the pipeline scrapes SlickCharts (weights, prices) and
// StockAnalysis (market caps), copies market caps onto the SlickCharts rows,
// saves both lists and checks that the two sources agree on membership.
// The union of symbols is then enriched once with all-time highs and
// valuation ratios, applied to every index and saved again.
package constituents
