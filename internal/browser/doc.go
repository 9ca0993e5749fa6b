// Package browser renders listing pages for the scrapers.
//
// SlickCharts builds its tables client side and needs headless Chrome
// (chromedp). StockAnalysis renders server side and works with plain HTTP.
// FallbackRenderer chains the two so a missing Chrome binary degrades to
// HTTP instead of failing the job.
package browser
