package backtest

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/rickgao/market-etl/internal/model"
)

// Mag7 is the default basket.
var Mag7 = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META", "NVDA", "TSLA"}

// Config holds strategy parameters.
type Config struct {
	Tickers        []string
	Benchmark      string
	Threshold      float64 // Drawdown from ATH that triggers a buy (default: 0.20)
	Capital        float64 // Starting cash (default: 100000)
	HoldingPeriods []int   // Days after each buy to evaluate (default: 30, 90, 180, 365)
}

// DefaultConfig returns the Mag 7 vs QQQ setup.
func DefaultConfig() Config {
	return Config{
		Tickers:        append([]string(nil), Mag7...),
		Benchmark:      "QQQ",
		Threshold:      0.20,
		Capital:        100000,
		HoldingPeriods: []int{30, 90, 180, 365},
	}
}

// PositionSize is the cash spent on each buy.
func (c Config) PositionSize() float64 {
	if len(c.Tickers) == 0 {
		return 0
	}
	return c.Capital / float64(len(c.Tickers))
}

// Trade is one buy signal.
type Trade struct {
	At       time.Time `csv:"-"`
	Date     string    `csv:"date"`
	Ticker   string    `csv:"ticker"`
	Action   string    `csv:"action"`
	Price    float64   `csv:"price"`
	Shares   float64   `csv:"shares"`
	ATH      float64   `csv:"ath"`
	Drawdown float64   `csv:"drawdown"` // percent, negative
}

// ValuePoint is a portfolio value on one day.
type ValuePoint struct {
	Date  time.Time
	Value float64
}

// Result is the outcome of a strategy run.
type Result struct {
	Values []ValuePoint
	Trades []Trade
	Cash   float64
	Shares map[string]float64
}

// Run replays the strategy over the union of trading days in prices.
// Holdings are valued at the latest close seen for their ticker.
func Run(cfg Config, prices map[string][]model.Bar) Result {
	closes := make(map[string]map[time.Time]float64, len(cfg.Tickers))
	for _, t := range cfg.Tickers {
		byDate := make(map[time.Time]float64, len(prices[t]))
		for _, b := range prices[t] {
			byDate[b.Date] = b.Close
		}
		closes[t] = byDate
	}

	res := Result{
		Cash:   cfg.Capital,
		Shares: make(map[string]float64, len(cfg.Tickers)),
	}
	ath := make(map[string]float64, len(cfg.Tickers))
	last := make(map[string]float64, len(cfg.Tickers))
	size := cfg.PositionSize()

	for _, day := range tradingDays(prices) {
		for _, t := range cfg.Tickers {
			price, ok := closes[t][day]
			if !ok {
				continue
			}
			last[t] = price
			if price > ath[t] {
				ath[t] = price
			}

			drawdown := (price - ath[t]) / ath[t]
			if drawdown <= -cfg.Threshold && res.Shares[t] == 0 && res.Cash >= size {
				shares := size / price
				res.Shares[t] = shares
				res.Cash -= size
				res.Trades = append(res.Trades, Trade{
					At:       day,
					Date:     day.Format(time.DateOnly),
					Ticker:   t,
					Action:   "BUY",
					Price:    price,
					Shares:   shares,
					ATH:      ath[t],
					Drawdown: drawdown * 100,
				})
			}
		}

		value := res.Cash
		for t, shares := range res.Shares {
			value += shares * last[t]
		}
		res.Values = append(res.Values, ValuePoint{Date: day, Value: value})
	}
	return res
}

// tradingDays returns every date present in any series, ascending.
func tradingDays(prices map[string][]model.Bar) []time.Time {
	var days []time.Time
	for _, bars := range prices {
		for _, b := range bars {
			days = append(days, b.Date)
		}
	}
	days = lo.Uniq(days)
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Benchmark values capital invested in the benchmark on its first day.
func Benchmark(capital float64, bars []model.Bar) []ValuePoint {
	if len(bars) == 0 || bars[0].Close == 0 {
		return nil
	}
	first := bars[0].Close
	out := make([]ValuePoint, 0, len(bars))
	for _, b := range bars {
		out = append(out, ValuePoint{Date: b.Date, Value: capital * b.Close / first})
	}
	return out
}

// Align keeps only the days present in both series.
func Align(strategy, benchmark []ValuePoint) ([]ValuePoint, []ValuePoint) {
	inBench := make(map[time.Time]struct{}, len(benchmark))
	for _, p := range benchmark {
		inBench[p.Date] = struct{}{}
	}
	inStrategy := make(map[time.Time]struct{}, len(strategy))
	for _, p := range strategy {
		inStrategy[p.Date] = struct{}{}
	}

	s := lo.Filter(strategy, func(p ValuePoint, _ int) bool {
		_, ok := inBench[p.Date]
		return ok
	})
	b := lo.Filter(benchmark, func(p ValuePoint, _ int) bool {
		_, ok := inStrategy[p.Date]
		return ok
	})
	return s, b
}
