package history

import (
	"strings"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// kindPhrases is checked in order; the first phrase found in a row wins.
// "First Recurring Payment" has to precede "Recurring Payment".
var kindPhrases = []struct {
	phrase string
	kind   model.TransactionKind
}{
	{"denefits fee + upfront payment", model.KindFeeUpfront},
	{"first recurring payment", model.KindFirstRecurring},
	{"recurring payment", model.KindRecurring},
	{"partial payment", model.KindPartial},
	{"additional payment", model.KindPayMore},
	{"pay more", model.KindPayMore},
	{"contract payoff", model.KindPayoff},
	{"payoff", model.KindPayoff},
	{"contribution", model.KindContribution},
}

// Classify maps a row's text to a transaction kind. Matching ignores case
// and runs of whitespace. Unrecognized text is KindOther.
func Classify(text string) model.TransactionKind {
	norm := strings.ToLower(strings.Join(strings.Fields(text), " "))
	for _, p := range kindPhrases {
		if strings.Contains(norm, p.phrase) {
			return p.kind
		}
	}
	return model.KindOther
}
