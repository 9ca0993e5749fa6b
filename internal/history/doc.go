// Package history maintains monthly price history files for the tracked
// indexes.
//
// Each index is stored as {dir}/{index}_history.json holding the monthly
// OHLCV series and the per-year return derived from it. A run either
// rebuilds the whole file ("max") or merges one month into it ("latest" or
// "YYYY-MM"); merged months never overwrite dates already on file.
package history
