package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"
)

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// ParseNumber reads a locale-formatted numeric token such as "1,730",
// "１，７３０", "+3.5%" or "▲1,200". Thousands separators, currency and
// percent marks are ignored; a leading ▲, △ or − (U+2212) marks a negative
// value. ok is false when the token holds no readable number.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(width.Narrow.String(s))
	negative := false
	for _, mark := range []string{"▲", "△", "\u2212"} {
		if strings.HasPrefix(s, mark) {
			s = strings.TrimPrefix(s, mark)
			negative = true
		}
	}

	s = nonNumeric.ReplaceAllString(s, "")
	if s == "" || s == "-" || s == "." {
		return 0, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), true
}
