package model

import "github.com/shopspring/decimal"

// PlanSnapshot holds the plan inputs scraped from the contract page at one point in time.
type PlanSnapshot struct {
	PlanAmount              decimal.Decimal
	EstimatedServiceAmount  decimal.Decimal
	TotalPayments           int
	RemainingPayments       int
	MissingPayments         int // as displayed; recomputed in DerivedState
	LateFeesCount           int
	LateFeePerOccurrence    decimal.Decimal
	ObservedRecurringAmount decimal.Decimal
	DonatedAmount           decimal.Decimal
	FixedFeeAmount          decimal.Decimal
	NextPaymentDate         string
}

// Displayed field names, as used in raw snapshot files.
const (
	FieldInterestRate          = "interest_rate"
	FieldRecurringAmount       = "recurring_amount"
	FieldPayoffAmount          = "payoff_amount"
	FieldTotalBalanceRemaining = "total_balance_remaining"
	FieldDownPaymentAmount     = "down_payment_amount"
	FieldMissingPayments       = "missing_payments"
)

// Displayed holds the values the application shows for the numbers the calculator derives.
// They are the "actual" side of every comparison.
type Displayed struct {
	InterestRate          decimal.Decimal
	RecurringAmount       decimal.Decimal
	PayoffAmount          decimal.Decimal
	TotalBalanceRemaining decimal.Decimal
	DownPaymentAmount     decimal.Decimal
	MissingPayments       int

	// Shown lists the fields that had text on screen. Nil means all of them.
	Shown map[string]bool
}

// Has reports whether field was on screen.
func (d Displayed) Has(field string) bool {
	return d.Shown == nil || d.Shown[field]
}

// DerivedState is the calculator output for one lifecycle stage.
//
// Inputs is the snapshot the stage was computed from, with RemainingPayments
// replaced by the value used for this stage. Later stages carry Inputs forward.
type DerivedState struct {
	Stage    Stage
	Sequence int // recurring payment number for StageRecurring, 0 otherwise
	Inputs   PlanSnapshot

	InterestRate          decimal.Decimal
	PrincipalPerPayment   decimal.Decimal
	RecurringAmount       decimal.Decimal
	TotalWithInterest     decimal.Decimal
	InterestAmount        decimal.Decimal
	PayoffAmount          decimal.Decimal
	TotalBalanceRemaining decimal.Decimal
	DownPaymentAmount     decimal.Decimal
	FeeUpfrontAmount      decimal.Decimal

	RemainingPayments int
	MissingPayments   int
	LateFeesCount     int
	LateFees          decimal.Decimal // per occurrence
}
