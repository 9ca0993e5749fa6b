package writer

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/rickgao/market-etl/internal/model"
)

// statement is one queued SQL statement.
type statement struct {
	sql  string
	args []any
}

// Column lists. Quoted names are camelCase columns shared with the web app.
var (
	etfColumns = []string{
		"ticker", `"etfLeverage"`, "issuer", "aum", `"assetClass"`, `"expenseRatio"`,
		`"peRatio"`, "price", "volume", "ch1w", "ch1m", "ch6m", `"chYTD"`, "ch1y",
		"ch3y", "ch5y", "ch10y", "high52", "low52", `"allTimeLow"`, `"allTimeLowChange"`,
		`"allTimeHigh"`, `"allTimeHighChange"`, `"allTimeHighDate"`, `"allTimeLowDate"`,
		`"etfIndex"`, `"inceptionDate"`, `"lastUpdated"`,
	}

	delistedColumns = []string{
		"ticker", `"etfLeverage"`, "issuer", "aum", `"assetClass"`, `"expenseRatio"`, `"etfIndex"`,
	}

	newLaunchColumns = []string{
		"ticker", "issuer", `"inceptionDate"`, "aum", `"assetClass"`, `"expenseRatio"`, `"etfIndex"`,
	}

	gainerLoserColumns = []string{
		"period", `"rankType"`, "rank", "ticker", "issuer", `"etfLeverage"`, "aum", `"etfIndex"`, `"returnValue"`,
	}

	statColumns = []string{
		`"statKey"`, `"totalAUM"`, `"totalETFCount"`, "issuer", `"issuerAUM"`, `"issuerCount"`,
		`"leverageType"`, `"leverageAUM"`, `"leverageCount"`, `"expenseRatioRange"`, `"expenseRatioCount"`,
	}

	constituentColumns = []string{
		"index_key", "symbol", "rank", "name", "market_cap", "price", "change", "weight",
		"net_change", "ath_price", "ath_date", "pe_ratio", "eps_ttm", "ps_ratio", "pb_ratio",
		"forward_pe", "last_updated",
	}

	quotaColumns = []string{
		"fund_code", "fund_name", "fund_company", "share_class", "quota",
		"currency", "pdf_id", "otc", "effective_date", "updated_at",
	}
)

// insertSQL builds a single-row INSERT with positional parameters followed
// by an optional conflict clause.
func insertSQL(table string, columns []string, conflict string) string {
	params := lo.Map(columns, func(_ string, i int) string {
		return fmt.Sprintf("$%d", i+1)
	})
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(params, ", "))
	if conflict != "" {
		sql += " " + conflict
	}
	return sql
}

// upsertClause returns ON CONFLICT (keys) DO UPDATE SET for every non-key column.
func upsertClause(columns, keys []string) string {
	sets := lo.FilterMap(columns, func(c string, _ int) (string, bool) {
		return c + " = EXCLUDED." + c, !lo.Contains(keys, c)
	})
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(keys, ", "), strings.Join(sets, ", "))
}

var (
	upsertETFSQL = insertSQL("etf_data", etfColumns, upsertClause(etfColumns, []string{"ticker"}))

	// archiveSQL copies the stored row of a vanished ticker into
	// delisted_etfs. $1 is the ticker, $2 the delisting time.
	archiveSQL = fmt.Sprintf(`INSERT INTO delisted_etfs (%s, "delistedDate")
		SELECT %s, $2 FROM etf_data WHERE ticker = $1
		ON CONFLICT (ticker, "delistedDate") DO NOTHING`,
		strings.Join(delistedColumns, ", "), strings.Join(delistedColumns, ", "))

	removeETFSQL = `DELETE FROM etf_data WHERE ticker = $1`

	insertNewLaunchSQL = insertSQL("new_launch_etfs", newLaunchColumns,
		`ON CONFLICT (ticker, "inceptionDate") DO NOTHING`)

	insertGainerLoserSQL = insertSQL("gainer_losers", gainerLoserColumns,
		upsertClause(gainerLoserColumns, []string{"period", `"rankType"`, "rank"}))

	insertStatSQL = insertSQL("market_stats", statColumns, "")

	upsertConstituentSQL = insertSQL("index_constituents", constituentColumns,
		upsertClause(constituentColumns, []string{"index_key", "symbol"}))

	// Older notices never overwrite a newer quota for the same fund.
	upsertQuotaSQL = insertSQL("fund_quota", quotaColumns,
		upsertClause(quotaColumns, []string{"fund_name"})+
			" WHERE EXCLUDED.effective_date >= fund_quota.effective_date")
)

// nullString maps "" to SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func etfArgs(e model.ETF, at time.Time) []any {
	return []any{
		e.Ticker, nullString(e.ETFLeverage), nullString(e.Issuer), e.AUM, nullString(e.AssetClass), e.ExpenseRatio,
		e.PERatio, e.Price, e.Volume, e.Ch1w, e.Ch1m, e.Ch6m, e.ChYTD, e.Ch1y,
		e.Ch3y, e.Ch5y, e.Ch10y, e.High52, e.Low52, e.AllTimeLow, e.AllTimeLowChange,
		e.AllTimeHigh, e.AllTimeHighChange, nullString(e.AllTimeHighDate), nullString(e.AllTimeLowDate),
		nullString(e.ETFIndex), nullString(e.InceptionDate), at,
	}
}

func newLaunchArgs(n model.NewLaunchETF) []any {
	return []any{
		n.Ticker, nullString(n.Issuer), n.InceptionDate, n.AUM, nullString(n.AssetClass), n.ExpenseRatio, nullString(n.ETFIndex),
	}
}

func gainerLoserArgs(g model.GainerLoser) []any {
	return []any{
		g.Period, g.RankType, g.Rank, g.Ticker, nullString(g.Issuer), nullString(g.ETFLeverage), g.AUM, nullString(g.ETFIndex), g.ReturnValue,
	}
}

func statArgs(r model.StatRow) []any {
	return []any{
		r.StatKey, r.TotalAUM, r.TotalETFCount, nullString(r.Issuer), r.IssuerAUM, r.IssuerCount,
		nullString(r.LeverageType), r.LeverageAUM, r.LeverageCount, nullString(r.ExpenseRatioRange), r.ExpenseRatioCount,
	}
}

func constituentArgs(indexKey string, c model.Constituent, at time.Time) []any {
	var marketCap *float64
	if c.MarketCap > 0 {
		marketCap = &c.MarketCap
	}
	return []any{
		indexKey, c.Symbol, c.No, nullString(c.Name), marketCap, c.Price, c.Change, c.Weight,
		c.NetChange, c.ATHPrice, nullString(c.ATHDate), c.PERatio, c.EPSTTM, c.PSRatio, c.PBRatio,
		c.ForwardPE, at,
	}
}

func quotaArgs(q model.FundQuota, at time.Time) ([]any, error) {
	effective, err := time.Parse("2006-01-02", q.EffectiveDate)
	if err != nil {
		return nil, fmt.Errorf("parse effective date %q: %w", q.EffectiveDate, err)
	}
	return []any{
		q.FundCode, q.FundName, q.FundCompany, q.ShareClass, q.Quota,
		q.Currency, nullString(q.PDFID), nullString(q.OTC), effective, at,
	}, nil
}

// statements pairs one SQL text with the argument lists of many rows.
func statements[T any](sql string, rows []T, args func(T) []any) []statement {
	return lo.Map(rows, func(r T, _ int) statement {
		return statement{sql: sql, args: args(r)}
	})
}
