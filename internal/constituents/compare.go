package constituents

import (
	"sort"

	"github.com/samber/lo"

	"github.com/rickgao/market-etl/internal/model"
)

// Comparison is the symbol-level diff between two constituent lists.
type Comparison struct {
	CountA      int      `json:"count_a"`
	CountB      int      `json:"count_b"`
	Common      int      `json:"common"`
	OnlyInA     []string `json:"only_in_a"`
	OnlyInB     []string `json:"only_in_b"`
	Consistency float64  `json:"consistency_pct"` // common / union * 100
	Consistent  bool     `json:"consistent"`
}

// Compare diffs a and b by symbol. The lists are consistent only when both
// are non-empty and contain exactly the same symbols.
func Compare(a, b []model.Constituent) Comparison {
	symA := Symbols(a)
	symB := Symbols(b)

	onlyA, onlyB := lo.Difference(symA, symB)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	common := len(lo.Intersect(symA, symB))
	union := common + len(onlyA) + len(onlyB)

	c := Comparison{
		CountA:  len(symA),
		CountB:  len(symB),
		Common:  common,
		OnlyInA: onlyA,
		OnlyInB: onlyB,
	}
	if union > 0 {
		c.Consistency = float64(common) / float64(union) * 100
	}
	c.Consistent = len(symA) > 0 && len(symB) > 0 && len(onlyA) == 0 && len(onlyB) == 0
	return c
}

// Symbols returns the distinct non-empty symbols of rows, in first-seen order.
func Symbols(rows []model.Constituent) []string {
	symbols := lo.FilterMap(rows, func(c model.Constituent, _ int) (string, bool) {
		return c.Symbol, c.Symbol != ""
	})
	return lo.Uniq(symbols)
}

// UnionSymbols returns the sorted union of symbols across lists.
func UnionSymbols(lists ...[]model.Constituent) []string {
	var all []string
	for _, l := range lists {
		all = append(all, Symbols(l)...)
	}
	all = lo.Uniq(all)
	sort.Strings(all)
	return all
}
