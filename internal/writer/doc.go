// Package writer implements the PostgreSQL and DynamoDB stores used by the
// sync jobs.
//
// Stores:
//   - PostgresStore: etf_data, delisted_etfs, new_launch_etfs, gainer_losers,
//     market_stats, index_constituents, fund_quota
//   - DynamoStore: ETFData, DelistedETFs, ETFMarketStats, NewLaunchETFs,
//     ETFGainersLosers, index-constituents
//
// Rows are written in batches of WriterConfig.BatchSize. A batch that fails
// is retried one row at a time, so a single bad row never drops its
// neighbours. Upserts rely on natural keys; the derived tables (stats, new
// launches, gainers/losers) are replaced wholesale on every run.
package writer
