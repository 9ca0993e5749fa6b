// Package database provides PostgreSQL connection pool management and schema setup.
//
// Tables:
//   - etf_data, delisted_etfs, new_launch_etfs, gainer_losers, market_stats (ETF screener)
//   - index_constituents (SlickCharts / StockAnalysis index members)
//   - fund_quota (CSRC purchase suspension quotas)
//
// ETF tables keep the camelCase column names of the screener API, quoted.
package database
