package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/sells-group/portfolio-cli/internal/model"
)

// fundUnitMarker is the unit suffix of fund quantities ("口").
const fundUnitMarker = "口"

// minFundNameRunes is the shortest cell accepted as a fund name.
const minFundNameRunes = 6

var (
	// "ＩＮＰＥＸ1605": name immediately followed by the code.
	trailingCodeRe = regexp.MustCompile(`^(.+?)([0-9０-９]{4,})$`)
	// "1605 ＩＮＰＥＸ": code, whitespace, name.
	leadingCodeRe = regexp.MustCompile(`^([0-9０-９]{4,})\s+(.+)$`)
	// nameCharRe finds a character that cannot be part of a number.
	nameCharRe  = regexp.MustCompile(`[^0-9０-９,，.．\s\-+]`)
	digitLeadRe = regexp.MustCompile(`^[0-9０-９]`)
)

// Fields are the classified cells of one holdings row.
type Fields struct {
	TickerCode string
	Name       string
	// Synthetic is set when TickerCode was generated because the portal
	// shows no code (mutual funds).
	Synthetic bool
	// NameCell is the index of the cell the ticker and name were read from.
	NameCell         int
	Quantity         float64
	AcquisitionPrice float64
	CurrentPrice     float64
	// Foreign carries listing details for foreign holdings.
	Foreign *model.ForeignDetails
}

// ClassifyFields locates the ticker and name of a row and reads quantity,
// acquisition price and current price from the cells after it. Rows with no
// recognisable name cell are skipped silently; rows whose numbers are
// missing or implausible are skipped with a field warning.
func ClassifyFields(sec Section, row Row, tickers *FundTickers) Result[Fields] {
	f, ok := locateName(sec, row.Cells, tickers)
	if !ok {
		return skip[Fields]()
	}

	nums := numericTokens(row.Cells[f.NameCell+1:])
	fieldWarning := func(reason string) Result[Fields] {
		return warn[Fields](Warning{
			Kind:    WarnField,
			Section: sec.Header,
			Row:     row.Index,
			Ticker:  f.TickerCode,
			Reason:  reason,
		})
	}

	if len(nums) < 3 {
		return fieldWarning(fmt.Sprintf("need quantity, acquisition and current price, found %d numbers", len(nums)))
	}
	f.Quantity, f.AcquisitionPrice, f.CurrentPrice = nums[0], nums[1], nums[2]

	if f.Quantity <= 0 || f.CurrentPrice <= 0 {
		return fieldWarning(fmt.Sprintf("implausible quantity %v or current price %v", f.Quantity, f.CurrentPrice))
	}
	if f.AcquisitionPrice == 0 {
		// No cost basis shown (fresh purchase): report zero gain, not a spike.
		f.AcquisitionPrice = f.CurrentPrice
	}
	return keep(f)
}

func locateName(sec Section, cells []string, tickers *FundTickers) (Fields, bool) {
	for i, text := range cells {
		if sec.AssetType == model.AssetTypeMutualFund && isFundName(text) {
			return Fields{
				TickerCode: tickers.Next(sec.AccountType, text),
				Name:       text,
				Synthetic:  true,
				NameCell:   i,
			}, true
		}
		if m := trailingCodeRe.FindStringSubmatch(text); m != nil && nameCharRe.MatchString(m[1]) {
			return Fields{
				TickerCode: width.Narrow.String(m[2]),
				Name:       strings.TrimSpace(m[1]),
				NameCell:   i,
			}, true
		}
		if m := leadingCodeRe.FindStringSubmatch(text); m != nil {
			return Fields{
				TickerCode: width.Narrow.String(m[1]),
				Name:       strings.TrimSpace(m[2]),
				NameCell:   i,
			}, true
		}
	}
	return Fields{}, false
}

func isFundName(text string) bool {
	return utf8.RuneCountInString(text) >= minFundNameRunes &&
		!digitLeadRe.MatchString(text) &&
		!strings.Contains(text, fundUnitMarker)
}

// isDateLike reports cells such as "25/01/06" or "--/--/--".
func isDateLike(text string) bool {
	return strings.ContainsAny(text, "/／") || strings.Contains(text, "--")
}

// numericTokens collects the non-zero numbers of cells, in order. A cell may
// hold several whitespace-separated numbers.
func numericTokens(cells []string) []float64 {
	var nums []float64
	for _, text := range cells {
		if isDateLike(text) {
			continue
		}
		text = strings.ReplaceAll(text, fundUnitMarker, "")
		for _, tok := range strings.Fields(text) {
			if v, ok := ParseNumber(tok); ok && v != 0 {
				nums = append(nums, v)
			}
		}
	}
	return nums
}
