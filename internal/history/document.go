package history

import (
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/rickgao/market-etl/internal/model"
)

const timestampLayout = "2006-01-02 15:04:05"

// MonthlyPoint is one monthly candle.
type MonthlyPoint struct {
	Date   string  `json:"date"`
	Year   int     `json:"year"`
	Month  int     `json:"month"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// YearlyReturn is the close-to-close change within one calendar year.
type YearlyReturn struct {
	Return     float64 `json:"return"`
	StartPrice float64 `json:"start_price"`
	EndPrice   float64 `json:"end_price"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
}

// Document is the on-disk history of one index.
type Document struct {
	Index         string                  `json:"index"`
	Name          string                  `json:"name"`
	Ticker        string                  `json:"ticker"`
	LastUpdated   string                  `json:"last_updated"`
	TotalMonths   int                     `json:"total_months"`
	YearlyReturns map[string]YearlyReturn `json:"yearly_returns"`
	MonthlyData   []MonthlyPoint          `json:"monthly_data"`
}

// NewDocument builds a document from a full monthly series.
func NewDocument(idx model.Index, months []MonthlyPoint, now time.Time) *Document {
	months = append([]MonthlyPoint(nil), months...)
	sortMonths(months)

	return &Document{
		Index:         idx.Key,
		Name:          idx.Name,
		Ticker:        idx.YahooTicker,
		LastUpdated:   now.Format(timestampLayout),
		TotalMonths:   len(months),
		YearlyReturns: YearlyReturns(months),
		MonthlyData:   months,
	}
}

// Merge appends the months whose date is not already present, re-sorts
// the series and recomputes the yearly returns. It returns the number of
// months added; the document is left untouched when none are new.
func (d *Document) Merge(months []MonthlyPoint, now time.Time) int {
	seen := make(map[string]struct{}, len(d.MonthlyData))
	for _, m := range d.MonthlyData {
		seen[m.Date] = struct{}{}
	}

	added := 0
	for _, m := range months {
		if _, ok := seen[m.Date]; ok {
			continue
		}
		seen[m.Date] = struct{}{}
		d.MonthlyData = append(d.MonthlyData, m)
		added++
	}
	if added == 0 {
		return 0
	}

	sortMonths(d.MonthlyData)
	d.YearlyReturns = YearlyReturns(d.MonthlyData)
	d.TotalMonths = len(d.MonthlyData)
	d.LastUpdated = now.Format(timestampLayout)
	return added
}

// MonthlyFromBars converts monthly bars to points rounded to cents.
func MonthlyFromBars(bars []model.Bar) []MonthlyPoint {
	out := make([]MonthlyPoint, 0, len(bars))
	for _, b := range bars {
		out = append(out, MonthlyPoint{
			Date:   b.Date.Format(time.DateOnly),
			Year:   b.Date.Year(),
			Month:  int(b.Date.Month()),
			Open:   round2(b.Open),
			High:   round2(b.High),
			Low:    round2(b.Low),
			Close:  round2(b.Close),
			Volume: b.Volume,
		})
	}
	return out
}

// YearlyReturns computes the first-to-last close change of every year with
// at least two months. months must be sorted by date.
func YearlyReturns(months []MonthlyPoint) map[string]YearlyReturn {
	byYear := lo.GroupBy(months, func(m MonthlyPoint) int { return m.Year })

	out := make(map[string]YearlyReturn, len(byYear))
	for year, ms := range byYear {
		if len(ms) < 2 {
			continue
		}
		first, last := ms[0], ms[len(ms)-1]
		if first.Close == 0 {
			continue
		}

		start := decimal.NewFromFloat(first.Close)
		end := decimal.NewFromFloat(last.Close)
		ret := end.Sub(start).Div(start).Mul(decimal.NewFromInt(100)).Round(2)

		out[strconv.Itoa(year)] = YearlyReturn{
			Return:     ret.InexactFloat64(),
			StartPrice: round2(first.Close),
			EndPrice:   round2(last.Close),
			StartDate:  first.Date,
			EndDate:    last.Date,
		}
	}
	return out
}

func sortMonths(months []MonthlyPoint) {
	sort.SliceStable(months, func(i, j int) bool { return months[i].Date < months[j].Date })
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
