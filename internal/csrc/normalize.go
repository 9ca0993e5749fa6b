package csrc

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/market-etl/internal/model"
)

// OTC is the channel recorded for every quota row.
const OTC = "场外"

var (
	// ErrInvalidCode is returned for fund codes that are not six digits.
	ErrInvalidCode = errors.New("invalid fund code")

	// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")
)

var companySuffixes = []string{
	"基金管理有限公司",
	"基金管理股份有限公司",
	"基金管理有限责任公司",
	"基金管理（中国）有限公司",
}

var (
	fundTagRe    = regexp.MustCompile(`\(?(QDII|LOF|ETF|REIT|DAX|CAC40|FOF)\)?`)
	shareClassRe = regexp.MustCompile(`[A-Z]`)
)

// Longest first so 美元债 does not leave a dangling 券.
var bondMarkers = []string{"美元收益债券", "美元债券", "美元债"}

var usdMarkers = []string{"美元", "美汇", "美钞"}

// Normalize validates one share class and converts it to a quota row.
func Normalize(sc ShareClass, company, beginDate, pdfID string) (model.FundQuota, error) {
	code := DigitsOnly(sc.Code)
	if len(code) != 6 {
		return model.FundQuota{}, fmt.Errorf("%w: %q", ErrInvalidCode, sc.Code)
	}
	if _, err := time.Parse(time.DateOnly, beginDate); err != nil {
		return model.FundQuota{}, fmt.Errorf("%w: %q", ErrInvalidDate, beginDate)
	}

	name := strings.TrimSpace(sc.Name)
	cleaned := CleanName(name)

	return model.FundQuota{
		FundCode:      code,
		FundName:      name,
		FundCompany:   CleanCompany(company),
		ShareClass:    ShareClassOf(cleaned),
		Quota:         ParseQuota(sc.Quota),
		Currency:      CurrencyOf(name),
		PDFID:         pdfID,
		OTC:           OTC,
		EffectiveDate: beginDate,
	}, nil
}

// DigitsOnly drops every non-digit rune.
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// ParseQuota parses an amount such as "1,000,000.00". Placeholders and
// unparsable values are 0.
func ParseQuota(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "", "-", notAvailable:
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

// CleanCompany strips the legal suffix from a fund company name.
func CleanCompany(s string) string {
	for _, suffix := range companySuffixes {
		s = strings.ReplaceAll(s, suffix, "")
	}
	return strings.TrimSpace(s)
}

// CleanName removes product tags and bond markers from a share class name.
func CleanName(s string) string {
	s = fundTagRe.ReplaceAllString(strings.TrimSpace(s), "")
	for _, m := range bondMarkers {
		s = strings.ReplaceAll(s, m, "")
	}
	return s
}

// CurrencyOf returns USD when the name marks a dollar share class.
func CurrencyOf(name string) string {
	for _, m := range usdMarkers {
		if strings.Contains(name, m) {
			return "USD"
		}
	}
	return "CNY"
}

// ShareClassOf returns the first uppercase ASCII letter of a cleaned name.
func ShareClassOf(cleaned string) string {
	if m := shareClassRe.FindString(cleaned); m != "" {
		return m
	}
	return notAvailable
}
