package csrc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Row labels in the disclosure table.
const (
	labelCompany = "基金管理人名称"
	labelDate    = "暂停大额申购起始日"
	labelName    = "下属分级基金的基金简称"
	labelCode    = "下属分级基金的交易代码"
	labelQuota   = "限制申购金额"
)

// Placeholder used for cells that are absent from the table.
const notAvailable = "N/A"

var (
	// ErrInsufficientRows is returned when the disclosure table has fewer
	// than three data rows.
	ErrInsufficientRows = errors.New("insufficient rows in disclosure table")

	// ErrMissingRows is returned when the company or start date row is missing.
	ErrMissingRows = errors.New("missing company or date row")
)

// ShareClass is one share class column of a disclosure, as printed.
type ShareClass struct {
	Name  string
	Code  string
	Quota string
}

// Disclosure is the parsed content of a suspension announcement.
type Disclosure struct {
	Company   string
	BeginDate string
	Classes   []ShareClass

	// Holiday is set for notices without share classes or start date
	// ("-"). They carry no quota and are skipped.
	Holiday bool
}

// ParseDisclosure extracts the fund company, suspension start date and
// share classes from an announcement page.
func ParseDisclosure(html string) (Disclosure, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Disclosure{}, fmt.Errorf("parse html: %w", err)
	}

	rows := doc.Find("div#con_one_1 table").First().Find("tr.dd")
	if rows.Length() < 3 {
		return Disclosure{}, fmt.Errorf("%w: got %d", ErrInsufficientRows, rows.Length())
	}

	var company, date, name, code, quota *goquery.Selection
	rows.Each(func(_ int, row *goquery.Selection) {
		first := row.Find("td").First()
		if first.Length() == 0 {
			return
		}
		label := strings.TrimSpace(first.Text())
		switch {
		case strings.Contains(label, labelCompany):
			company = row
		case strings.Contains(label, labelDate):
			date = row
		case strings.Contains(label, labelName):
			name = row
		case strings.Contains(label, labelCode):
			code = row
		case strings.Contains(label, labelQuota):
			quota = row
		}
	})

	if name == nil {
		return Disclosure{Holiday: true}, nil
	}
	if company == nil || date == nil {
		return Disclosure{}, ErrMissingRows
	}

	d := Disclosure{
		Company:   firstValue(company),
		BeginDate: firstValue(date),
	}
	if d.BeginDate == "-" {
		d.Holiday = true
		return d, nil
	}

	names := values(name)
	codes := values(code)
	quotas := values(quota)
	for i, n := range names {
		d.Classes = append(d.Classes, ShareClass{
			Name:  n,
			Code:  valueAt(codes, i),
			Quota: valueAt(quotas, i),
		})
	}
	return d, nil
}

// values returns the text of every cell after the label cell.
func values(row *goquery.Selection) []string {
	if row == nil {
		return nil
	}
	var out []string
	row.Find("td").Slice(1, goquery.ToEnd).Each(func(_ int, td *goquery.Selection) {
		out = append(out, cellText(td))
	})
	return out
}

func firstValue(row *goquery.Selection) string {
	return valueAt(values(row), 0)
}

func valueAt(vals []string, i int) string {
	if i < len(vals) {
		return vals[i]
	}
	return notAvailable
}

// cellText prefers the cell's first <p>, which wraps the value on most pages.
func cellText(td *goquery.Selection) string {
	if p := td.Find("p").First(); p.Length() > 0 {
		return strings.TrimSpace(p.Text())
	}
	return strings.TrimSpace(td.Text())
}
