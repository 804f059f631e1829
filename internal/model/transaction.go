package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies a transaction history row by its description.
type TransactionKind string

const (
	KindFeeUpfront     TransactionKind = "FeeUpfront"
	KindFirstRecurring TransactionKind = "FirstRecurring"
	KindRecurring      TransactionKind = "Recurring"
	KindPartial        TransactionKind = "Partial"
	KindPayMore        TransactionKind = "PayMore"
	KindPayoff         TransactionKind = "Payoff"
	KindContribution   TransactionKind = "Contribution"
	KindOther          TransactionKind = "Other"
)

// TransactionRecord is one row scraped from the on-screen transaction history.
type TransactionRecord struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Raw         string // full row text as scraped
	Kind        TransactionKind
	Success     bool // false when the row reads Failed, Declined or Void
}
