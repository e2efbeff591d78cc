package extract

import (
	"iter"
	"regexp"
	"strings"
)

// MinCells is the fewest cells a data row can have: a name cell plus the
// numeric cells that follow it.
const MinCells = 3

var (
	rowRe        = regexp.MustCompile(`(?is)<tr\b([^>]*)>(.*?)</tr>`)
	rightAlignRe = regexp.MustCompile(`(?i)\balign\s*=\s*["']?right\b`)
	cellRe       = regexp.MustCompile(`(?is)<td\b[^>]*>(.*?)</td>`)
	cellBreakRe  = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	spaceRe      = regexp.MustCompile(`\s+`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&#160;", " ",
		"\u00a0", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// Row is one candidate data row of a holdings table.
type Row struct {
	// Index is the 1-based position among the section's right-aligned rows.
	Index int
	Cells []string
}

// Rows yields the data rows of one section's markup. Only right-aligned
// rows are data rows on the portal; others are headers and spacers. Rows
// with fewer than MinCells cells are dropped. The sequence scans lazily and
// can be ranged over more than once.
func Rows(section string) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		index := 0
		for rest := section; ; {
			loc := rowRe.FindStringSubmatchIndex(rest)
			if loc == nil {
				return
			}
			attrs, body := rest[loc[2]:loc[3]], rest[loc[4]:loc[5]]
			rest = rest[loc[1]:]

			if !rightAlignRe.MatchString(attrs) {
				continue
			}
			index++

			cells := rowCells(body)
			if len(cells) < MinCells {
				continue
			}
			if !yield(Row{Index: index, Cells: cells}) {
				return
			}
		}
	}
}

func rowCells(body string) []string {
	matches := cellRe.FindAllStringSubmatch(body, -1)
	cells := make([]string, 0, len(matches))
	for _, m := range matches {
		cells = append(cells, cellText(m[1]))
	}
	return cells
}

// cellText flattens a cell to text. Line breaks become spaces so values
// stacked in one cell stay separate tokens.
func cellText(html string) string {
	s := cellBreakRe.ReplaceAllString(html, " ")
	s = tagRe.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
