// Package report aggregates soft checks. A failed check never stops a run;
// every discrepancy is collected and printed at the end.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

var (
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed, color.Bold)
	faint = color.New(color.Faint)
)

// Check is one soft assertion.
type Check struct {
	ContractID string
	Stage      model.Stage
	Field      string
	Rule       string // "equal", "positive" or "at most"
	Expected   decimal.Decimal
	Actual     decimal.Decimal
	Passed     bool
}

// Report collects checks. Methods are safe on a nil *Report and record nothing.
type Report struct {
	tolerance decimal.Decimal

	mu     sync.Mutex
	checks []Check
}

// New creates a Report. Amounts within tolerance of each other are equal.
func New(tolerance decimal.Decimal) *Report {
	return &Report{tolerance: tolerance.Abs()}
}

// Tolerance returns the equality tolerance.
func (r *Report) Tolerance() decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return r.tolerance
}

// Equal checks that actual is within the tolerance of expected.
func (r *Report) Equal(contractID string, stage model.Stage, field string, expected, actual decimal.Decimal) bool {
	ok := expected.Sub(actual).Abs().LessThanOrEqual(r.Tolerance())
	r.add(Check{ContractID: contractID, Stage: stage, Field: field, Rule: "equal", Expected: expected, Actual: actual, Passed: ok})
	return ok
}

// Positive checks that v is greater than zero.
func (r *Report) Positive(contractID string, stage model.Stage, field string, v decimal.Decimal) bool {
	ok := v.IsPositive()
	r.add(Check{ContractID: contractID, Stage: stage, Field: field, Rule: "positive", Actual: v, Passed: ok})
	return ok
}

// AtMost checks that v does not exceed limit by more than the tolerance.
func (r *Report) AtMost(contractID string, stage model.Stage, field string, v, limit decimal.Decimal) bool {
	ok := v.Sub(limit).LessThanOrEqual(r.Tolerance())
	r.add(Check{ContractID: contractID, Stage: stage, Field: field, Rule: "at most", Expected: limit, Actual: v, Passed: ok})
	return ok
}

func (r *Report) add(c Check) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, c)
}

// Checks returns every check in the order made.
func (r *Report) Checks() []Check {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Check(nil), r.checks...)
}

// Failures returns the failed checks in the order made.
func (r *Report) Failures() []Check {
	var out []Check
	for _, c := range r.Checks() {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Failed reports whether any check failed.
func (r *Report) Failed() bool {
	return len(r.Failures()) > 0
}

// CompareDisplayed checks the calculator's values for a stage against what
// the application displayed. Fields that were not on screen are skipped.
// The displayed payoff must also not exceed the displayed total balance.
func (r *Report) CompareDisplayed(contractID string, st model.DerivedState, shown model.Displayed) {
	if shown.Has(model.FieldRecurringAmount) {
		r.Equal(contractID, st.Stage, "Recurring Amount", st.RecurringAmount, shown.RecurringAmount)
	}
	if shown.Has(model.FieldPayoffAmount) {
		r.Equal(contractID, st.Stage, "Payoff", st.PayoffAmount, shown.PayoffAmount)
	}
	if shown.Has(model.FieldTotalBalanceRemaining) {
		r.Equal(contractID, st.Stage, "Total Balance Remaining", st.TotalBalanceRemaining, shown.TotalBalanceRemaining)
	}
	if shown.Has(model.FieldDownPaymentAmount) {
		r.Equal(contractID, st.Stage, "Down Payment", st.DownPaymentAmount, shown.DownPaymentAmount)
	}
	if shown.Has(model.FieldPayoffAmount) && shown.Has(model.FieldTotalBalanceRemaining) {
		r.AtMost(contractID, st.Stage, "Payoff vs Total Balance Remaining", shown.PayoffAmount, shown.TotalBalanceRemaining)
	}
}

// Write prints the mismatch report: one line per failed check and a summary.
func (r *Report) Write(w io.Writer) error {
	checks := r.Checks()
	failures := r.Failures()

	if len(failures) == 0 {
		_, err := green.Fprintf(w, "All %d checks passed\n", len(checks))
		return err
	}

	if _, err := red.Fprintf(w, "Mismatch report: %d of %d checks failed\n", len(failures), len(checks)); err != nil {
		return err
	}
	for _, c := range failures {
		if _, err := fmt.Fprintf(w, "  %s\n", describe(c)); err != nil {
			return err
		}
	}
	_, err := faint.Fprintf(w, "  (tolerance %s)\n", r.Tolerance().String())
	return err
}

func describe(c Check) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s: ", c.ContractID, c.Stage, c.Field)
	switch c.Rule {
	case "positive":
		fmt.Fprintf(&b, "expected > 0, got %s", c.Actual.StringFixed(2))
	case "at most":
		fmt.Fprintf(&b, "%s exceeds %s", c.Actual.StringFixed(2), c.Expected.StringFixed(2))
	default:
		fmt.Fprintf(&b, "expected %s, got %s (diff %s)",
			c.Expected.StringFixed(2), c.Actual.StringFixed(2), c.Actual.Sub(c.Expected).StringFixed(2))
	}
	return b.String()
}
