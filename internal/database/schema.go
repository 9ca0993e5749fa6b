package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds idempotent DDL for every table the jobs write.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS etf_data (
		ticker              TEXT PRIMARY KEY,
		"etfLeverage"       TEXT,
		issuer              TEXT,
		aum                 DOUBLE PRECISION,
		"assetClass"        TEXT,
		"expenseRatio"      DOUBLE PRECISION,
		"peRatio"           DOUBLE PRECISION,
		price               DOUBLE PRECISION,
		volume              BIGINT,
		ch1w                DOUBLE PRECISION,
		ch1m                DOUBLE PRECISION,
		ch6m                DOUBLE PRECISION,
		"chYTD"             DOUBLE PRECISION,
		ch1y                DOUBLE PRECISION,
		ch3y                DOUBLE PRECISION,
		ch5y                DOUBLE PRECISION,
		ch10y               DOUBLE PRECISION,
		high52              DOUBLE PRECISION,
		low52               DOUBLE PRECISION,
		"allTimeLow"        DOUBLE PRECISION,
		"allTimeLowChange"  DOUBLE PRECISION,
		"allTimeHigh"       DOUBLE PRECISION,
		"allTimeHighChange" DOUBLE PRECISION,
		"allTimeHighDate"   TEXT,
		"allTimeLowDate"    TEXT,
		"etfIndex"          TEXT,
		"inceptionDate"     TEXT,
		"lastUpdated"       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS etf_data_leverage_idx ON etf_data ("etfLeverage")`,
	`CREATE TABLE IF NOT EXISTS delisted_etfs (
		ticker         TEXT NOT NULL,
		"etfLeverage"  TEXT,
		issuer         TEXT,
		aum            DOUBLE PRECISION,
		"assetClass"   TEXT,
		"expenseRatio" DOUBLE PRECISION,
		"etfIndex"     TEXT,
		"delistedDate" TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (ticker, "delistedDate")
	)`,
	`CREATE TABLE IF NOT EXISTS new_launch_etfs (
		ticker          TEXT NOT NULL,
		issuer          TEXT,
		"inceptionDate" TEXT NOT NULL,
		aum             DOUBLE PRECISION,
		"assetClass"    TEXT,
		"expenseRatio"  DOUBLE PRECISION,
		"etfIndex"      TEXT,
		PRIMARY KEY (ticker, "inceptionDate")
	)`,
	`CREATE TABLE IF NOT EXISTS gainer_losers (
		period        TEXT NOT NULL,
		"rankType"    TEXT NOT NULL,
		rank          INTEGER NOT NULL,
		ticker        TEXT NOT NULL,
		issuer        TEXT,
		"etfLeverage" TEXT,
		aum           DOUBLE PRECISION,
		"etfIndex"    TEXT,
		"returnValue" DOUBLE PRECISION,
		PRIMARY KEY (period, "rankType", rank)
	)`,
	`CREATE TABLE IF NOT EXISTS market_stats (
		"statKey"           TEXT PRIMARY KEY,
		"totalAUM"          DOUBLE PRECISION,
		"totalETFCount"     INTEGER,
		issuer              TEXT,
		"issuerAUM"         DOUBLE PRECISION,
		"issuerCount"       INTEGER,
		"leverageType"      TEXT,
		"leverageAUM"       DOUBLE PRECISION,
		"leverageCount"     INTEGER,
		"expenseRatioRange" TEXT,
		"expenseRatioCount" INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS index_constituents (
		index_key      TEXT NOT NULL,
		symbol         TEXT NOT NULL,
		rank           INTEGER,
		name           TEXT,
		market_cap     DOUBLE PRECISION,
		price          DOUBLE PRECISION,
		change         DOUBLE PRECISION,
		weight         DOUBLE PRECISION,
		net_change     DOUBLE PRECISION,
		ath_price      DOUBLE PRECISION,
		ath_date       TEXT,
		pe_ratio       DOUBLE PRECISION,
		eps_ttm        DOUBLE PRECISION,
		ps_ratio       DOUBLE PRECISION,
		pb_ratio       DOUBLE PRECISION,
		forward_pe     DOUBLE PRECISION,
		last_updated   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (index_key, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS fund_quota (
		fund_code      TEXT NOT NULL,
		fund_name      TEXT PRIMARY KEY,
		fund_company   TEXT NOT NULL,
		share_class    TEXT NOT NULL,
		quota          DOUBLE PRECISION NOT NULL,
		currency       TEXT NOT NULL,
		pdf_id         TEXT,
		otc            TEXT,
		effective_date DATE NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
