package model

import "time"

// -----------------------------------------------------------------------------
// Index Constituents
// -----------------------------------------------------------------------------

// Constituent is one member of a stock index as scraped from a listing page.
// Enrichment fields stay nil until Yahoo data is applied.
type Constituent struct {
	No            int     `json:"no"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	MarketCap     float64 `json:"marketCap"`               // USD, 0 when unknown
	MarketCapText string  `json:"marketCapText,omitempty"` // as displayed, e.g. "3.45T"
	Price         float64 `json:"price"`
	Change        float64 `json:"change"` // percent
	Weight        float64 `json:"weight"` // percent of index
	NetChange     float64 `json:"netChange"`

	ATHPrice  *float64 `json:"ath_price,omitempty"`
	ATHDate   string   `json:"ath_date,omitempty"`
	PERatio   *float64 `json:"pe_ratio,omitempty"`
	EPSTTM    *float64 `json:"eps_ttm,omitempty"`
	PSRatio   *float64 `json:"ps_ratio,omitempty"`
	PBRatio   *float64 `json:"pb_ratio,omitempty"`
	ForwardPE *float64 `json:"forward_pe,omitempty"`
}

// AllTimeHigh is the highest daily high a symbol has traded at.
type AllTimeHigh struct {
	Price float64 `json:"ath_price"`
	Date  string  `json:"ath_date"` // YYYY-MM-DD
}

// Ratios holds valuation ratios. Any field may be nil.
type Ratios struct {
	PERatio   *float64 `json:"pe_ratio"`
	EPSTTM    *float64 `json:"eps_ttm"`
	PSRatio   *float64 `json:"ps_ratio"`
	PBRatio   *float64 `json:"pb_ratio"`
	ForwardPE *float64 `json:"forward_pe"`
}

// Empty reports whether no ratio is known.
func (r Ratios) Empty() bool {
	return r.PERatio == nil && r.EPSTTM == nil && r.PSRatio == nil && r.PBRatio == nil && r.ForwardPE == nil
}

// -----------------------------------------------------------------------------
// ETFs
// -----------------------------------------------------------------------------

// ETF is one row of the StockAnalysis ETF screener. Numeric fields are nil
// when the screener has no value.
type ETF struct {
	Ticker            string   `json:"ticker"`
	ETFLeverage       string   `json:"etfLeverage,omitempty"`
	Issuer            string   `json:"issuer,omitempty"`
	AUM               *float64 `json:"aum,omitempty"`
	AssetClass        string   `json:"assetClass,omitempty"`
	ExpenseRatio      *float64 `json:"expenseRatio,omitempty"`
	PERatio           *float64 `json:"peRatio,omitempty"`
	Price             *float64 `json:"price,omitempty"`
	Volume            *int64   `json:"volume,omitempty"`
	Ch1w              *float64 `json:"ch1w,omitempty"`
	Ch1m              *float64 `json:"ch1m,omitempty"`
	Ch6m              *float64 `json:"ch6m,omitempty"`
	ChYTD             *float64 `json:"chYTD,omitempty"`
	Ch1y              *float64 `json:"ch1y,omitempty"`
	Ch3y              *float64 `json:"ch3y,omitempty"`
	Ch5y              *float64 `json:"ch5y,omitempty"`
	Ch10y             *float64 `json:"ch10y,omitempty"`
	High52            *float64 `json:"high52,omitempty"`
	Low52             *float64 `json:"low52,omitempty"`
	AllTimeLow        *float64 `json:"allTimeLow,omitempty"`
	AllTimeLowChange  *float64 `json:"allTimeLowChange,omitempty"`
	AllTimeHigh       *float64 `json:"allTimeHigh,omitempty"`
	AllTimeHighChange *float64 `json:"allTimeHighChange,omitempty"`
	AllTimeHighDate   string   `json:"allTimeHighDate,omitempty"`
	AllTimeLowDate    string   `json:"allTimeLowDate,omitempty"`
	ETFIndex          string   `json:"etfIndex,omitempty"`
	InceptionDate     string   `json:"inceptionDate,omitempty"` // YYYY-MM-DD
}

// Periods are the screener return columns ranked into gainers and losers.
var Periods = []string{"ch1w", "ch1m", "ch6m", "ch1y", "ch3y", "ch5y", "ch10y", "chYTD"}

// Return returns the change for a period key, or nil for unknown keys.
func (e ETF) Return(period string) *float64 {
	switch period {
	case "ch1w":
		return e.Ch1w
	case "ch1m":
		return e.Ch1m
	case "ch6m":
		return e.Ch6m
	case "ch1y":
		return e.Ch1y
	case "ch3y":
		return e.Ch3y
	case "ch5y":
		return e.Ch5y
	case "ch10y":
		return e.Ch10y
	case "chYTD":
		return e.ChYTD
	}
	return nil
}

// DelistedETF archives an ETF that disappeared from the screener.
type DelistedETF struct {
	Ticker       string    `json:"ticker"`
	ETFLeverage  string    `json:"etfLeverage,omitempty"`
	Issuer       string    `json:"issuer,omitempty"`
	AUM          *float64  `json:"aum,omitempty"`
	AssetClass   string    `json:"assetClass,omitempty"`
	ExpenseRatio *float64  `json:"expenseRatio,omitempty"`
	ETFIndex     string    `json:"etfIndex,omitempty"`
	DelistedDate time.Time `json:"delistedDate"`
}

// NewLaunchETF is an ETF with a recent inception date.
type NewLaunchETF struct {
	Ticker        string   `json:"ticker"`
	Issuer        string   `json:"issuer,omitempty"`
	InceptionDate string   `json:"inceptionDate"`
	AUM           *float64 `json:"aum,omitempty"`
	AssetClass    string   `json:"assetClass,omitempty"`
	ExpenseRatio  *float64 `json:"expenseRatio,omitempty"`
	ETFIndex      string   `json:"etfIndex,omitempty"`
}

// Rank types of GainerLoser.
const (
	RankGainer = "gainer"
	RankLoser  = "loser"
)

// GainerLoser is one ranked entry of a period's top movers.
type GainerLoser struct {
	Period      string  `json:"period"`
	RankType    string  `json:"rankType"`
	Rank        int     `json:"rank"`
	Ticker      string  `json:"ticker"`
	Issuer      string  `json:"issuer"`
	ETFLeverage string  `json:"etfLeverage"`
	AUM         float64 `json:"aum"`
	ETFIndex    string  `json:"etfIndex"`
	ReturnValue float64 `json:"returnValue"`
}

// StatRow is one flattened market statistic keyed by StatKey.
// Only the fields matching the key's family are set.
type StatRow struct {
	StatKey           string   `json:"statKey"`
	TotalAUM          *float64 `json:"totalAUM,omitempty"`
	TotalETFCount     *int     `json:"totalETFCount,omitempty"`
	Issuer            string   `json:"issuer,omitempty"`
	IssuerAUM         *float64 `json:"issuerAUM,omitempty"`
	IssuerCount       *int     `json:"issuerCount,omitempty"`
	LeverageType      string   `json:"leverageType,omitempty"`
	LeverageAUM       *float64 `json:"leverageAUM,omitempty"`
	LeverageCount     *int     `json:"leverageCount,omitempty"`
	ExpenseRatioRange string   `json:"expenseRatioRange,omitempty"`
	ExpenseRatioCount *int     `json:"expenseRatioCount,omitempty"`
}

// -----------------------------------------------------------------------------
// Fund Quotas
// -----------------------------------------------------------------------------

// FundQuota is a normalized purchase-limit record for one fund share class.
type FundQuota struct {
	FundCode      string  `json:"fund_code"`
	FundName      string  `json:"fund_name"`
	FundCompany   string  `json:"fund_company"`
	ShareClass    string  `json:"share_class"`
	Quota         float64 `json:"quota"`
	Currency      string  `json:"currency"` // USD or CNY
	PDFID         string  `json:"pdf_id"`
	OTC           string  `json:"otc"`
	EffectiveDate string  `json:"effective_date"` // YYYY-MM-DD
}

// -----------------------------------------------------------------------------
// Price History
// -----------------------------------------------------------------------------

// Bar is one OHLCV candle.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}
