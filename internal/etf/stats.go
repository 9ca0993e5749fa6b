package etf

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/rickgao/market-etl/internal/model"
)

// Unknown labels ETFs without an issuer or leverage type.
const Unknown = "Unknown"

// Stat key prefixes.
const (
	StatKeyTotal          = "MARKET_STATS_TOTAL"
	StatKeyIssuer         = "ISSUER#"
	StatKeyLeverage       = "LEVERAGE#"
	StatKeyIssuerLeverage = "ISSUER_LEVERAGE#"
	StatKeyExpenseRatio   = "EXPENSE_RATIO#"
)

// ExpenseRatioBuckets are the expense ratio ranges (percent), lower bound
// inclusive, in display order.
var ExpenseRatioBuckets = []string{"0.00-0.10", "0.10-0.25", "0.25-0.50", "0.50-1.00", "1.00-2.00", "2.00+", "N/A"}

// Aggregate is an AUM total and ETF count.
type Aggregate struct {
	AUM   decimal.Decimal
	Count int
}

func (a *Aggregate) add(aum *float64) {
	a.Count++
	if aum != nil {
		a.AUM = a.AUM.Add(decimal.NewFromFloat(*aum))
	}
}

// MarketStats summarizes the ETF universe.
type MarketStats struct {
	Total          Aggregate
	Issuers        map[string]*Aggregate
	Leverage       map[string]*Aggregate
	IssuerLeverage map[string]map[string]*Aggregate
	ExpenseRatios  map[string]int
}

// ComputeMarketStats aggregates AUM and counts by issuer, leverage type and
// issuer/leverage pair, and counts ETFs per expense ratio bucket.
func ComputeMarketStats(etfs map[string]model.ETF) MarketStats {
	s := MarketStats{
		Issuers:        make(map[string]*Aggregate),
		Leverage:       make(map[string]*Aggregate),
		IssuerLeverage: make(map[string]map[string]*Aggregate),
		ExpenseRatios:  make(map[string]int, len(ExpenseRatioBuckets)),
	}
	for _, b := range ExpenseRatioBuckets {
		s.ExpenseRatios[b] = 0
	}

	for _, e := range etfs {
		s.Total.add(e.AUM)

		issuer := lo.Ternary(e.Issuer == "", Unknown, e.Issuer)
		leverage := lo.Ternary(e.ETFLeverage == "", Unknown, e.ETFLeverage)

		aggregate(s.Issuers, issuer).add(e.AUM)
		aggregate(s.Leverage, leverage).add(e.AUM)

		byLeverage, ok := s.IssuerLeverage[issuer]
		if !ok {
			byLeverage = make(map[string]*Aggregate)
			s.IssuerLeverage[issuer] = byLeverage
		}
		aggregate(byLeverage, leverage).add(e.AUM)

		s.ExpenseRatios[ExpenseRatioBucket(e.ExpenseRatio)]++
	}
	return s
}

func aggregate(m map[string]*Aggregate, key string) *Aggregate {
	a, ok := m[key]
	if !ok {
		a = &Aggregate{}
		m[key] = a
	}
	return a
}

// ExpenseRatioBucket returns the bucket label for an expense ratio.
func ExpenseRatioBucket(ratio *float64) string {
	if ratio == nil {
		return "N/A"
	}
	switch r := *ratio; {
	case r < 0.10:
		return "0.00-0.10"
	case r < 0.25:
		return "0.10-0.25"
	case r < 0.50:
		return "0.25-0.50"
	case r < 1.00:
		return "0.50-1.00"
	case r < 2.00:
		return "1.00-2.00"
	default:
		return "2.00+"
	}
}

// Rows flattens the stats into keyed rows: the total, then issuers,
// leverage types and issuer/leverage pairs (each sorted), then expense
// ratio buckets in display order. Issuer/leverage rows carry the pair's
// AUM and count in the leverage fields.
func (s MarketStats) Rows() []model.StatRow {
	rows := []model.StatRow{{
		StatKey:       StatKeyTotal,
		TotalAUM:      ptr(s.Total.AUM.InexactFloat64()),
		TotalETFCount: ptr(s.Total.Count),
	}}

	for _, issuer := range sortedKeys(s.Issuers) {
		a := s.Issuers[issuer]
		rows = append(rows, model.StatRow{
			StatKey:     StatKeyIssuer + issuer,
			Issuer:      issuer,
			IssuerAUM:   ptr(a.AUM.InexactFloat64()),
			IssuerCount: ptr(a.Count),
		})
	}

	for _, lev := range sortedKeys(s.Leverage) {
		a := s.Leverage[lev]
		rows = append(rows, model.StatRow{
			StatKey:       StatKeyLeverage + lev,
			LeverageType:  lev,
			LeverageAUM:   ptr(a.AUM.InexactFloat64()),
			LeverageCount: ptr(a.Count),
		})
	}

	issuers := lo.Keys(s.IssuerLeverage)
	sort.Strings(issuers)
	for _, issuer := range issuers {
		byLeverage := s.IssuerLeverage[issuer]
		for _, lev := range sortedKeys(byLeverage) {
			a := byLeverage[lev]
			rows = append(rows, model.StatRow{
				StatKey:       StatKeyIssuerLeverage + issuer + "#" + lev,
				Issuer:        issuer,
				LeverageType:  lev,
				LeverageAUM:   ptr(a.AUM.InexactFloat64()),
				LeverageCount: ptr(a.Count),
			})
		}
	}

	for _, b := range ExpenseRatioBuckets {
		rows = append(rows, model.StatRow{
			StatKey:           StatKeyExpenseRatio + b,
			ExpenseRatioRange: b,
			ExpenseRatioCount: ptr(s.ExpenseRatios[b]),
		})
	}
	return rows
}

func sortedKeys(m map[string]*Aggregate) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func ptr[T any](v T) *T {
	return &v
}
