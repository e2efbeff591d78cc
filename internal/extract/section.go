package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/portfolio-cli/internal/model"
)

// Asset labels used in the holdings page section headers.
const (
	stockLabel      = "株式"
	mutualFundLabel = "投資信託"
)

var (
	// headerRe matches a bold section header: an asset label, an optional
	// line break, then a parenthesised account label, e.g.
	// <b>株式（特定預り）</b> or <b>投資信託<br>（金額/NISA預り（成長投資枠））</b>.
	// A bare <b>株式</b> still matches with an empty tail.
	headerRe = regexp.MustCompile(`(?i)<b>(` + stockLabel + `|` + mutualFundLabel + `)\s*(?:<br\s*/?>)?\s*((?:[（(](?:[^<]|<br\s*/?>)*)?)</b>`)

	lineBreakRe = regexp.MustCompile(`(?i)<br\s*/?>|\r?\n`)

	// amountBasisRe is the qualifier funds prefix to the account label.
	amountBasisRe = regexp.MustCompile(`金額\s*[/／]\s*`)
)

// Section is the part of a holdings page that belongs to one table header.
type Section struct {
	AssetType   model.AssetType
	AccountType model.AccountType
	Header      string
	Start       int
	End         int
}

// Markup returns the section's slice of doc.
func (s Section) Markup(doc string) string {
	return doc[s.Start:s.End]
}

// Segment splits a holdings page into sections, in document order. Each
// section runs from its header to the next header or the end of the page.
// Headers without a usable account label produce a warning and no section;
// they still end the previous section so their rows are never attributed to
// it.
func Segment(doc string) ([]Section, []Warning) {
	matches := headerRe.FindAllStringSubmatchIndex(doc, -1)

	var (
		sections []Section
		warnings []Warning
	)
	for i, m := range matches {
		end := len(doc)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		asset := doc[m[2]:m[3]]
		tail := normalizeHeader(doc[m[4]:m[5]])
		header := asset + tail

		label, ok := accountLabel(tail)
		if !ok {
			warnings = append(warnings, Warning{
				Kind:    WarnSection,
				Section: header,
				Reason:  "header has no account type label",
			})
			continue
		}

		account, matched := ClassifyAccount(label)
		if !matched {
			warnings = append(warnings, Warning{
				Kind:    WarnSection,
				Section: header,
				Reason:  "unrecognised account type " + label + ", assuming specific",
			})
		}

		sections = append(sections, Section{
			AssetType:   assetTypeFor(asset),
			AccountType: account,
			Header:      header,
			Start:       m[0],
			End:         end,
		})
	}
	return sections, warnings
}

func assetTypeFor(label string) model.AssetType {
	if label == mutualFundLabel {
		return model.AssetTypeMutualFund
	}
	return model.AssetTypeStock
}

func normalizeHeader(s string) string {
	s = lineBreakRe.ReplaceAllString(s, "")
	s = amountBasisRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func isOpenParen(r rune) bool  { return r == '（' || r == '(' }
func isCloseParen(r rune) bool { return r == '）' || r == ')' }

// accountLabel returns the contents of the last top-level parenthesised
// group in s. "（NISA預り（成長投資枠））" yields "NISA預り（成長投資枠）".
func accountLabel(s string) (string, bool) {
	var (
		depth int
		start int
		label string
		found bool
	)
	for i, r := range s {
		switch {
		case isOpenParen(r):
			if depth == 0 {
				start = i + len(string(r))
			}
			depth++
		case isCloseParen(r) && depth > 0:
			depth--
			if depth == 0 {
				label = strings.TrimSpace(s[start:i])
				found = true
			}
		}
	}
	return label, found && label != ""
}
