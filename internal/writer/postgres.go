package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/rickgao/market-etl/internal/model"
)

// PostgresStore writes ETF, constituent and fund quota rows to PostgreSQL.
type PostgresStore struct {
	metricsRecorder

	cfg    WriterConfig
	db     *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(cfg WriterConfig, db *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		cfg:    cfg.withDefaults(),
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// ExistingTickers returns every ticker currently in etf_data.
func (s *PostgresStore) ExistingTickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT ticker FROM etf_data`)
	if err != nil {
		return nil, fmt.Errorf("query tickers: %w", err)
	}
	tickers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan tickers: %w", err)
	}
	return tickers, nil
}

// ArchiveDelisted copies the stored rows of tickers into delisted_etfs and
// removes them from etf_data, one transaction per batch.
func (s *PostgresStore) ArchiveDelisted(ctx context.Context, tickers []string, at time.Time) (int, error) {
	stmts := make([]statement, 0, 2*len(tickers))
	for _, t := range tickers {
		stmts = append(stmts,
			statement{sql: archiveSQL, args: []any{t, at.UTC()}},
			statement{sql: removeETFSQL, args: []any{t}},
		)
	}

	archived := 0
	for _, chunk := range lo.Chunk(stmts, 2*s.cfg.BatchSize) {
		affected, err := s.sendBatch(ctx, chunk)
		if err != nil {
			return archived, fmt.Errorf("archive delisted: %w", err)
		}
		for i := 0; i < len(affected); i += 2 {
			archived += int(affected[i])
		}
	}
	s.logger.Info("archived delisted etfs", "count", archived, "requested", len(tickers))
	return archived, nil
}

// UpsertETFs inserts or updates etf_data rows, stamping lastUpdated.
func (s *PostgresStore) UpsertETFs(ctx context.Context, etfs []model.ETF, at time.Time) (int, error) {
	at = at.UTC()
	stmts := statements(upsertETFSQL, etfs, func(e model.ETF) []any {
		return etfArgs(e, at)
	})
	return s.writeChunks(ctx, "etf_data", stmts)
}

// ReplaceMarketStats swaps the contents of market_stats.
func (s *PostgresStore) ReplaceMarketStats(ctx context.Context, rows []model.StatRow) error {
	return s.replace(ctx, "market_stats", statements(insertStatSQL, rows, statArgs))
}

// ReplaceNewLaunches swaps the contents of new_launch_etfs.
func (s *PostgresStore) ReplaceNewLaunches(ctx context.Context, rows []model.NewLaunchETF) error {
	return s.replace(ctx, "new_launch_etfs", statements(insertNewLaunchSQL, rows, newLaunchArgs))
}

// ReplaceGainersLosers swaps the contents of gainer_losers.
func (s *PostgresStore) ReplaceGainersLosers(ctx context.Context, rows []model.GainerLoser) error {
	return s.replace(ctx, "gainer_losers", statements(insertGainerLoserSQL, rows, gainerLoserArgs))
}

// UpsertConstituents inserts or updates the constituents of one index.
func (s *PostgresStore) UpsertConstituents(ctx context.Context, indexKey string, rows []model.Constituent) (int, error) {
	at := s.now().UTC()
	stmts := statements(upsertConstituentSQL, rows, func(c model.Constituent) []any {
		return constituentArgs(indexKey, c, at)
	})
	return s.writeChunks(ctx, "index_constituents", stmts)
}

// UpsertQuota writes one fund quota unless a newer one is already stored.
func (s *PostgresStore) UpsertQuota(ctx context.Context, q model.FundQuota) error {
	args, err := quotaArgs(q, s.now().UTC())
	if err != nil {
		return err
	}
	ct, err := s.db.Exec(ctx, upsertQuotaSQL, args...)
	if err != nil {
		s.record(func(m *WriterMetrics) { m.Errors++ })
		return fmt.Errorf("upsert quota %s: %w", q.FundCode, err)
	}
	s.record(func(m *WriterMetrics) {
		if ct.RowsAffected() == 0 {
			m.Conflicts++
			return
		}
		m.Inserts++
	})
	return nil
}

// writeChunks sends stmts in batches of BatchSize, each in its own
// transaction. A failed batch is retried row by row; rows that still fail
// are counted and reported in the returned error.
func (s *PostgresStore) writeChunks(ctx context.Context, table string, stmts []statement) (int, error) {
	chunks := lo.Chunk(stmts, s.cfg.BatchSize)
	written, failed := 0, 0

	for i, chunk := range chunks {
		affected, err := s.sendBatch(ctx, chunk)
		if err == nil {
			written += len(chunk)
			s.logger.Debug("batch written",
				"table", table,
				"batch", i+1,
				"batches", len(chunks),
				"rows", len(chunk),
				"conflicts", lo.Count(affected, 0),
			)
			continue
		}
		if ctx.Err() != nil {
			return written, ctx.Err()
		}

		s.logger.Warn("batch failed, retrying rows individually",
			"table", table,
			"batch", i+1,
			"batches", len(chunks),
			"error", err,
		)
		for _, st := range chunk {
			ct, err := s.db.Exec(ctx, st.sql, st.args...)
			if err != nil {
				failed++
				s.record(func(m *WriterMetrics) { m.Errors++ })
				s.logger.Error("row write failed", "table", table, "key", st.args[0], "error", err)
				continue
			}
			written++
			s.record(func(m *WriterMetrics) {
				if ct.RowsAffected() == 0 {
					m.Conflicts++
				} else {
					m.Inserts++
				}
			})
		}
	}

	if failed > 0 {
		return written, fmt.Errorf("write %s: %d of %d rows failed", table, failed, len(stmts))
	}
	return written, nil
}

// sendBatch runs stmts as one pgx.Batch inside a transaction and returns
// the rows affected by each statement.
func (s *PostgresStore) sendBatch(ctx context.Context, stmts []statement) ([]int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	affected, err := execBatch(ctx, tx, stmts)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.recordBatch(affected)
	return affected, nil
}

// replace deletes every row of table and inserts stmts in one transaction.
func (s *PostgresStore) replace(ctx context.Context, table string, stmts []statement) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("replace %s: begin: %w", table, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, "DELETE FROM "+table)
	if err != nil {
		return fmt.Errorf("replace %s: delete: %w", table, err)
	}
	deleted := ct.RowsAffected()

	all := make([]int64, 0, len(stmts))
	for _, chunk := range lo.Chunk(stmts, s.cfg.BatchSize) {
		affected, err := execBatch(ctx, tx, chunk)
		if err != nil {
			s.record(func(m *WriterMetrics) { m.Errors += int64(len(stmts)) })
			return fmt.Errorf("replace %s: %w", table, err)
		}
		all = append(all, affected...)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("replace %s: commit: %w", table, err)
	}

	s.recordBatch(all)
	s.record(func(m *WriterMetrics) { m.Deletes += deleted })
	s.logger.Debug("table replaced", "table", table, "deleted", deleted, "inserted", len(stmts))
	return nil
}

func (s *PostgresStore) recordBatch(affected []int64) {
	conflicts := lo.Count(affected, 0)
	s.record(func(m *WriterMetrics) {
		m.Inserts += int64(len(affected) - conflicts)
		m.Conflicts += int64(conflicts)
		m.Batches++
	})
}

// execBatch queues stmts on tx and collects rows affected per statement.
func execBatch(ctx context.Context, tx pgx.Tx, stmts []statement) ([]int64, error) {
	if len(stmts) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for _, st := range stmts {
		batch.Queue(st.sql, st.args...)
	}

	results := tx.SendBatch(ctx, batch)
	affected := make([]int64, 0, len(stmts))
	for range stmts {
		ct, err := results.Exec()
		if err != nil {
			return nil, errors.Join(err, results.Close())
		}
		affected = append(affected, ct.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return nil, err
	}
	return affected, nil
}
