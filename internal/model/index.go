package model

import "sort"

// Index describes a tracked stock index and where its members are listed.
type Index struct {
	Key               string
	Name              string
	SlickChartsURL    string
	StockAnalysisURL  string
	YahooTicker       string
	ExpectedCount     int
	SlickChartsFile   string
	StockAnalysisFile string
}

var indexes = map[string]Index{
	"sp500": {
		Key:               "sp500",
		Name:              "S&P 500",
		SlickChartsURL:    "https://www.slickcharts.com/sp500",
		StockAnalysisURL:  "https://stockanalysis.com/list/sp-500-stocks/",
		YahooTicker:       "^GSPC",
		ExpectedCount:     503,
		SlickChartsFile:   "sp500_slickcharts.json",
		StockAnalysisFile: "sp500_stockanalysis.json",
	},
	"nasdaq100": {
		Key:               "nasdaq100",
		Name:              "Nasdaq 100",
		SlickChartsURL:    "https://www.slickcharts.com/nasdaq100",
		StockAnalysisURL:  "https://stockanalysis.com/list/nasdaq-100-stocks/",
		YahooTicker:       "^NDX",
		ExpectedCount:     101,
		SlickChartsFile:   "nasdaq100_slickcharts.json",
		StockAnalysisFile: "nasdaq100_stockanalysis.json",
	},
	"dow": {
		Key:               "dow",
		Name:              "Dow Jones",
		SlickChartsURL:    "https://www.slickcharts.com/dowjones",
		StockAnalysisURL:  "https://stockanalysis.com/list/dow-jones-stocks/",
		YahooTicker:       "^DJI",
		ExpectedCount:     30,
		SlickChartsFile:   "dow_slickcharts.json",
		StockAnalysisFile: "dow_stockanalysis.json",
	},
}

// indexOrder is the processing order used when all indexes are requested.
var indexOrder = []string{"sp500", "nasdaq100", "dow"}

// LookupIndex returns the index registered under key.
func LookupIndex(key string) (Index, bool) {
	idx, ok := indexes[key]
	return idx, ok
}

// Indexes returns every registered index in processing order.
func Indexes() []Index {
	out := make([]Index, 0, len(indexOrder))
	for _, k := range indexOrder {
		out = append(out, indexes[k])
	}
	return out
}

// IndexKeys returns the registered keys, sorted.
func IndexKeys() []string {
	keys := make([]string, 0, len(indexes))
	for k := range indexes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
