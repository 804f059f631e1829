package model

import "github.com/shopspring/decimal"

// StageRow is one labeled row of a persisted contract record.
// Fetched rows hold scraped values; every other label holds calculated values.
type StageRow struct {
	Type                  Stage
	ContractID            string
	ServiceAmount         decimal.Decimal
	PlanAmount            decimal.Decimal
	DownPayment           decimal.Decimal
	InterestRate          decimal.Decimal
	TotalPayments         int
	RemainingPayments     int
	Principal             decimal.Decimal
	RecurringAmount       decimal.Decimal
	TotalBalanceRemaining decimal.Decimal
	Payoff                decimal.Decimal
	NextPaymentDate       string
	MissingPayments       int
	LateFeesCount         int
	LateFees              decimal.Decimal
	FixedFee              decimal.Decimal
	Donated               decimal.Decimal
	InterestAmount        decimal.Decimal
	FeeUpfront            decimal.Decimal
	Sequence              int
}

// ContractRecord is everything persisted for one contract: stage rows in
// lifecycle order and the transaction history last scraped.
type ContractRecord struct {
	ContractID string
	Rows       []StageRow
	History    []TransactionRecord
}

// Row returns the row labeled stage.
func (r *ContractRecord) Row(stage Stage) (StageRow, bool) {
	for _, row := range r.Rows {
		if row.Type == stage {
			return row, true
		}
	}
	return StageRow{}, false
}

// Put inserts or replaces the row with the same label, keeping lifecycle order.
func (r *ContractRecord) Put(row StageRow) {
	row.ContractID = r.ContractID
	for i := range r.Rows {
		if r.Rows[i].Type == row.Type {
			r.Rows[i] = row
			return
		}
	}
	at := len(r.Rows)
	for i := range r.Rows {
		if r.Rows[i].Type.Order() > row.Type.Order() {
			at = i
			break
		}
	}
	r.Rows = append(r.Rows, StageRow{})
	copy(r.Rows[at+1:], r.Rows[at:])
	r.Rows[at] = row
}

// Drop removes the rows labeled with any of stages.
func (r *ContractRecord) Drop(stages ...Stage) {
	kept := r.Rows[:0]
	for _, row := range r.Rows {
		drop := false
		for _, s := range stages {
			if row.Type == s {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, row)
		}
	}
	r.Rows = kept
}

// Clone returns a deep copy of r.
func (r *ContractRecord) Clone() *ContractRecord {
	out := &ContractRecord{ContractID: r.ContractID}
	if r.Rows != nil {
		out.Rows = append([]StageRow(nil), r.Rows...)
	}
	if r.History != nil {
		out.History = append([]TransactionRecord(nil), r.History...)
	}
	return out
}
