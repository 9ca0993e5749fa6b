// Package backtest simulates a buy-the-dip strategy on a basket of stocks
// against a buy-and-hold benchmark.
//
// Each ticker is bought once, for an equal slice of the starting capital,
// on the first day its close sits at or below (1 - threshold) of its
// running all-time high. The all-time high only uses closes up to that
// day. Positions are never sold; PeriodReturns measures what the whole
// portfolio and the benchmark did over fixed holding windows after each
// buy.
package backtest
