package extract

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sells-group/portfolio-cli/internal/model"
)

// SyntheticPrefix marks tickers generated for funds listed without a code.
const SyntheticPrefix = "MF-"

var fundNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://www.sbisec.co.jp/fund"))

// FundTickers generates synthetic tickers for mutual funds. A ticker is
// derived from the account type and fund name, so the same fund gets the
// same ticker on every scrape. Repeats within one snapshot get a numeric
// suffix to keep tickers unique per row.
type FundTickers struct {
	seen map[string]int
}

// NewFundTickers returns a generator for one snapshot.
func NewFundTickers() *FundTickers {
	return &FundTickers{seen: make(map[string]int)}
}

// Next returns the ticker for a fund row.
func (t *FundTickers) Next(account model.AccountType, name string) string {
	id := uuid.NewSHA1(fundNamespace, []byte(string(account)+"\x00"+name))
	base := SyntheticPrefix + strings.ToUpper(id.String()[:8])

	t.seen[base]++
	if n := t.seen[base]; n > 1 {
		return fmt.Sprintf("%s-%d", base, n)
	}
	return base
}

// IsSynthetic reports whether ticker was generated by FundTickers.
func IsSynthetic(ticker string) bool {
	return strings.HasPrefix(ticker, SyntheticPrefix)
}
