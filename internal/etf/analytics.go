package etf

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/rickgao/market-etl/internal/model"
)

// Defaults for the derived tables.
const (
	DefaultTopN         = 50
	DefaultLaunchWindow = 10 // days
)

// Delisted returns the tickers in old that are missing from current, sorted.
func Delisted(old, current []string) []string {
	gone, _ := lo.Difference(lo.Uniq(old), current)
	sort.Strings(gone)
	return gone
}

// NewLaunches returns ETFs whose inception date is within days of now,
// newest first. Rows with a missing or malformed inception date are skipped.
func NewLaunches(etfs map[string]model.ETF, now time.Time, days int) []model.NewLaunchETF {
	cutoff := now.UTC().AddDate(0, 0, -days)

	var out []model.NewLaunchETF
	for _, e := range etfs {
		if e.InceptionDate == "" {
			continue
		}
		inception, err := time.Parse("2006-01-02", e.InceptionDate)
		if err != nil || inception.Before(cutoff) {
			continue
		}
		out = append(out, model.NewLaunchETF{
			Ticker:        e.Ticker,
			Issuer:        e.Issuer,
			InceptionDate: e.InceptionDate,
			AUM:           e.AUM,
			AssetClass:    e.AssetClass,
			ExpenseRatio:  e.ExpenseRatio,
			ETFIndex:      e.ETFIndex,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].InceptionDate != out[j].InceptionDate {
			return out[i].InceptionDate > out[j].InceptionDate
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}

// GainersLosers ranks every ETF by each period's return and keeps the top n
// gainers (descending) and top n losers (ascending). A missing return counts
// as 0. Equal returns are ordered by ticker.
func GainersLosers(etfs map[string]model.ETF, n int) []model.GainerLoser {
	all := Sorted(etfs)
	var out []model.GainerLoser

	for _, period := range model.Periods {
		ret := func(e model.ETF) float64 {
			if v := e.Return(period); v != nil {
				return *v
			}
			return 0
		}

		ranked := make([]model.ETF, len(all))
		copy(ranked, all)

		sort.SliceStable(ranked, func(i, j int) bool { return ret(ranked[i]) > ret(ranked[j]) })
		for i, e := range ranked[:min(n, len(ranked))] {
			out = append(out, gainerLoser(e, period, model.RankGainer, i+1, ret(e)))
		}

		sort.SliceStable(ranked, func(i, j int) bool {
			ri, rj := ret(ranked[i]), ret(ranked[j])
			if ri != rj {
				return ri < rj
			}
			return ranked[i].Ticker < ranked[j].Ticker
		})
		for i, e := range ranked[:min(n, len(ranked))] {
			out = append(out, gainerLoser(e, period, model.RankLoser, i+1, ret(e)))
		}
	}
	return out
}

func gainerLoser(e model.ETF, period, rankType string, rank int, ret float64) model.GainerLoser {
	issuer := e.Issuer
	if issuer == "" {
		issuer = Unknown
	}
	var aum float64
	if e.AUM != nil {
		aum = *e.AUM
	}
	return model.GainerLoser{
		Period:      period,
		RankType:    rankType,
		Rank:        rank,
		Ticker:      e.Ticker,
		Issuer:      issuer,
		ETFLeverage: e.ETFLeverage,
		AUM:         aum,
		ETFIndex:    e.ETFIndex,
		ReturnValue: ret,
	}
}
