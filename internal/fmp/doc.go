// Package fmp fetches index constituents and quotes from the Financial
// Modeling Prep API.
package fmp
