package extract

import (
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/model"
)

// Extraction is the outcome of parsing one holdings page.
type Extraction struct {
	Holdings []model.Holding
	Sections []Section
	Warnings []Warning
}

// Extractor parses the holdings pages of one snapshot. It is not safe for
// concurrent use; each scrape creates its own.
type Extractor struct {
	tickers *FundTickers
}

// NewExtractor returns an Extractor for a new snapshot.
func NewExtractor() *Extractor {
	return &Extractor{tickers: NewFundTickers()}
}

// Domestic parses the domestic holdings page, which lists stock and mutual
// fund sections for every account type.
func (e *Extractor) Domestic(doc string) *Extraction {
	sections, warnings := Segment(doc)
	out := &Extraction{Sections: sections, Warnings: warnings}

	zap.L().Info("extract: sections found", zap.Int("sections", len(sections)))

	for _, sec := range sections {
		count := 0
		for row := range Rows(sec.Markup(doc)) {
			res := e.holding(sec, row)
			if res.Warning != nil {
				out.Warnings = append(out.Warnings, *res.Warning)
			}
			if res.Skipped {
				continue
			}
			out.Holdings = append(out.Holdings, res.Value)
			count++
		}
		zap.L().Info("extract: section parsed",
			zap.String("asset_type", string(sec.AssetType)),
			zap.String("account_type", string(sec.AccountType)),
			zap.Int("holdings", count),
		)
	}

	logWarnings(out.Warnings)
	return out
}

// Foreign parses the foreign holdings page. The layout of that page has not
// been captured yet, so it yields no holdings.
func (e *Extractor) Foreign(doc string) *Extraction {
	zap.L().Info("extract: foreign holdings not parsed", zap.Int("bytes", len(doc)))
	return &Extraction{}
}

func (e *Extractor) holding(sec Section, row Row) Result[model.Holding] {
	fields := ClassifyFields(sec, row, e.tickers)
	if fields.Skipped {
		return Result[model.Holding]{Skipped: true, Warning: fields.Warning}
	}

	h, err := BuildHolding(sec.AssetType, sec.AccountType, fields.Value)
	if err != nil {
		return warn[model.Holding](Warning{
			Kind:    WarnRow,
			Section: sec.Header,
			Row:     row.Index,
			Ticker:  fields.Value.TickerCode,
			Reason:  err.Error(),
		})
	}
	return keep(h)
}

func logWarnings(warnings []Warning) {
	for _, w := range warnings {
		zap.L().Warn("extract: skipped",
			zap.String("kind", string(w.Kind)),
			zap.String("section", w.Section),
			zap.Int("row", w.Row),
			zap.String("ticker", w.Ticker),
			zap.String("reason", w.Reason),
		)
	}
}
