package scrape

import (
	"strconv"
	"strings"
)

// CleanFloat keeps only digits and dots (and a minus sign when signed is
// true) and parses what is left. ok is false when nothing parseable remains.
func CleanFloat(s string, signed bool) (v float64, ok bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-' && signed:
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Float is CleanFloat with 0 for unparseable input.
func Float(s string, signed bool) float64 {
	v, _ := CleanFloat(s, signed)
	return v
}

// ParsePercent parses "(-1.23%)" style text into -1.23.
func ParsePercent(s string) float64 {
	s = strings.NewReplacer("(", "", ")", "", "%", "").Replace(s)
	return Float(s, true)
}

// ParseRank returns the integer in s, or fallback when s is not all digits.
func ParseRank(s string, fallback int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return fallback
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// ParseMarketCap converts display text such as "3.45T", "812.5B" or
// "25.1M" into dollars. Plain numbers are returned as-is; "-" and "N/A" are 0.
func ParseMarketCap(s string) float64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "-" || s == "N/A" {
		return 0
	}
	mult := 1.0
	switch {
	case strings.Contains(s, "T"):
		mult = 1e12
	case strings.Contains(s, "B"):
		mult = 1e9
	case strings.Contains(s, "M"):
		mult = 1e6
	case strings.Contains(s, "K"):
		mult = 1e3
	}
	v, ok := CleanFloat(s, false)
	if !ok {
		return 0
	}
	return v * mult
}

// AnyToFloat converts a decoded JSON value (number or string) to float64.
func AnyToFloat(v any, signed bool) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		return Float(t, signed)
	}
	return 0
}

// AnyToString converts a decoded JSON value to a trimmed string.
func AnyToString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
