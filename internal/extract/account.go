package extract

import (
	"strings"

	"golang.org/x/text/width"

	"github.com/sells-group/portfolio-cli/internal/model"
)

type accountRule struct {
	marker  string
	account model.AccountType
}

// accountRules are evaluated in order. The NISA sub-types must come before
// the bare NISA marker, which every one of them also contains.
var accountRules = []accountRule{
	{"旧つみたてNISA", model.AccountNISAOldTsumitate},
	{"つみたて投資枠", model.AccountNISATsumitate},
	{"成長投資枠", model.AccountNISAGrowth},
	{"NISA", model.AccountNISAGrowth},
	{"一般", model.AccountGeneral},
	{"特定", model.AccountSpecific},
}

// ClassifyAccount maps an account section label such as "NISA預り（成長投資枠）"
// to its AccountType. Unrecognised labels classify as specific with matched
// set to false so the caller can report them.
func ClassifyAccount(label string) (account model.AccountType, matched bool) {
	norm := strings.ToUpper(width.Fold.String(label))
	for _, r := range accountRules {
		if strings.Contains(norm, r.marker) {
			return r.account, true
		}
	}
	return model.AccountSpecific, false
}
