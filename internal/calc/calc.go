// Package calc recomputes a payment plan's derived amounts from its inputs.
//
// Every function is pure: a stage's DerivedState is built only from the
// snapshot or prior state passed in.
package calc

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// ErrInvalidInput is returned for plan inputs the formulas are undefined for.
var ErrInvalidInput = errors.New("invalid plan input")

// LongTermThreshold is the first payment count priced with monthly compounding.
const LongTermThreshold = 13

var (
	// ShortTermMultiplier is applied to the plan amount as a whole for short plans.
	ShortTermMultiplier = decimal.RequireFromString("1.1990")
	// LongTermAPR is the annual percentage rate for long plans, compounded monthly.
	LongTermAPR = decimal.RequireFromString("16.99")

	monthsTimesPercent = decimal.NewFromInt(1200)
	ten                = decimal.NewFromInt(10)
)

// wide enough that compounding 16.99% over any realistic term keeps its cents
const compoundPrecision = 20

// InterestRate selects the rate tier for a plan of totalPayments installments.
func InterestRate(totalPayments int) decimal.Decimal {
	if totalPayments < LongTermThreshold {
		return ShortTermMultiplier
	}
	return LongTermAPR
}

// Recurring returns the total repaid with interest and the rounded installment.
// Short plans multiply the plan amount by rate and split it over totalPayments;
// long plans compound rate/1200 monthly and split over totalPayments+1.
func Recurring(plan decimal.Decimal, totalPayments int, rate decimal.Decimal) (total, recurring decimal.Decimal) {
	n := decimal.NewFromInt(int64(totalPayments))
	if totalPayments < LongTermThreshold {
		total = plan.Mul(rate)
		return total, total.Div(n).Round(2)
	}
	factor := decimal.NewFromInt(1).Add(rate.Div(monthsTimesPercent))
	compound := factor.Pow(n).Round(compoundPrecision)
	total = plan.Mul(compound)
	return total, total.Div(n.Add(decimal.NewFromInt(1))).Round(2)
}

// FeeUpfront picks the fee + upfront payment amount: the smaller of the
// installment and the interest, or a tenth of the plan when they are equal.
func FeeUpfront(recurring, interest, plan decimal.Decimal) decimal.Decimal {
	switch recurring.Cmp(interest) {
	case -1:
		return recurring
	case 1:
		return interest
	default:
		return plan.Div(ten)
	}
}

// ComputeInitial derives the enrollment-time state from a scraped snapshot.
func ComputeInitial(s model.PlanSnapshot) (model.DerivedState, error) {
	if err := Validate(s); err != nil {
		return model.DerivedState{}, err
	}
	rate := InterestRate(s.TotalPayments)
	total, recurring := Recurring(s.PlanAmount, s.TotalPayments, rate)
	st := derive(s, rate, total, recurring, s.ObservedRecurringAmount)
	st.Stage = model.StageCalculated
	return st, nil
}

// ComputeNext derives the state after a payment event. The interest rate and
// installment carry over from prior; only the remaining payment count is new.
func ComputeNext(prior model.DerivedState, freshRemaining int) (model.DerivedState, error) {
	s := prior.Inputs
	s.RemainingPayments = freshRemaining
	if err := Validate(s); err != nil {
		return model.DerivedState{}, err
	}
	total, _ := Recurring(s.PlanAmount, s.TotalPayments, prior.InterestRate)
	st := derive(s, prior.InterestRate, total, prior.RecurringAmount, prior.RecurringAmount)
	st.Stage = prior.Stage
	st.Sequence = prior.Sequence
	return st, nil
}

// Settle derives the closed-contract state after a payoff: nothing remains,
// nothing is missing and no late fees are owed.
func Settle(prior model.DerivedState) (model.DerivedState, error) {
	s := prior.Inputs
	s.RemainingPayments = 0
	s.MissingPayments = 0
	s.LateFeesCount = 0
	s.LateFeePerOccurrence = decimal.Zero
	if err := Validate(s); err != nil {
		return model.DerivedState{}, err
	}
	total, _ := Recurring(s.PlanAmount, s.TotalPayments, prior.InterestRate)
	st := derive(s, prior.InterestRate, total, prior.RecurringAmount, prior.RecurringAmount)
	st.Stage = model.StagePayoff
	st.MissingPayments = 0
	st.PayoffAmount = decimal.Zero
	st.TotalBalanceRemaining = decimal.Zero
	return st, nil
}

// Validate rejects snapshots the formulas would divide by zero on or that
// describe an impossible payment count.
func Validate(s model.PlanSnapshot) error {
	switch {
	case s.TotalPayments < 1:
		return fmt.Errorf("%w: total payments %d, need at least 1", ErrInvalidInput, s.TotalPayments)
	case s.RemainingPayments < 0:
		return fmt.Errorf("%w: remaining payments %d is negative", ErrInvalidInput, s.RemainingPayments)
	case s.RemainingPayments > s.TotalPayments:
		return fmt.Errorf("%w: remaining payments %d exceeds total %d", ErrInvalidInput, s.RemainingPayments, s.TotalPayments)
	case s.MissingPayments < 0:
		return fmt.Errorf("%w: missing payments %d is negative", ErrInvalidInput, s.MissingPayments)
	case s.LateFeesCount < 0:
		return fmt.Errorf("%w: late fees count %d is negative", ErrInvalidInput, s.LateFeesCount)
	}
	return nil
}

// derive applies the payoff, balance and fee rules shared by every stage.
// balanceRecurring is the installment used for the total balance remaining.
func derive(s model.PlanSnapshot, rate, total, recurring, balanceRecurring decimal.Decimal) model.DerivedState {
	n := decimal.NewFromInt(int64(s.TotalPayments))
	remaining := decimal.NewFromInt(int64(s.RemainingPayments))
	missing := decimal.NewFromInt(int64(s.MissingPayments))
	lateFees := decimal.NewFromInt(int64(s.LateFeesCount)).Mul(s.LateFeePerOccurrence)

	principal := s.PlanAmount.Div(n)

	var payoff decimal.Decimal
	if s.MissingPayments > 0 {
		payoff = principal.Mul(remaining.Sub(missing)).
			Add(missing.Mul(recurring)).
			Add(lateFees)
	} else {
		payoff = principal.Mul(remaining)
	}

	interest := total.Sub(s.PlanAmount)

	return model.DerivedState{
		Inputs:                s,
		InterestRate:          rate,
		PrincipalPerPayment:   principal,
		RecurringAmount:       recurring,
		TotalWithInterest:     total,
		InterestAmount:        interest,
		PayoffAmount:          payoff.Round(2),
		TotalBalanceRemaining: balanceRecurring.Mul(remaining).Add(lateFees).Round(2),
		DownPaymentAmount:     s.EstimatedServiceAmount.Sub(s.PlanAmount),
		FeeUpfrontAmount:      FeeUpfront(recurring, interest, s.PlanAmount),
		RemainingPayments:     s.RemainingPayments,
		MissingPayments:       s.TotalPayments - s.RemainingPayments,
		LateFeesCount:         s.LateFeesCount,
		LateFees:              s.LateFeePerOccurrence,
	}
}
