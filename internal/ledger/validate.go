package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// ValidationError describes one inconsistency in a stored contract record.
type ValidationError struct {
	Stage       model.Stage
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s]: %s", e.Stage, e.Description)
}

// ValidateRecord checks the invariants every ledger write preserves. A record
// edited by hand, or written by two runs at once, can break them.
func ValidateRecord(rec *model.ContractRecord) []ValidationError {
	var errs []ValidationError
	add := func(stage model.Stage, format string, args ...any) {
		errs = append(errs, ValidationError{Stage: stage, Description: fmt.Sprintf(format, args...)})
	}

	// Each stage at most once, in lifecycle order.
	seen := make(map[model.Stage]bool)
	last := -1
	for _, row := range rec.Rows {
		if seen[row.Type] {
			add(row.Type, "stage appears more than once")
		}
		seen[row.Type] = true
		if row.Type.Order() < last {
			add(row.Type, "stage out of lifecycle order")
		}
		last = row.Type.Order()
	}

	// Later stages need the rows they are computed from.
	if StateOf(rec).Phase > Uninitialized {
		if !seen[model.StageFetched] {
			add(model.StageFetched, "missing; later stages cannot be recomputed")
		}
	}
	if (seen[model.StageRecurring] || seen[model.StagePayoff]) && !seen[model.StageCalculated] {
		add(model.StageCalculated, "missing before later stages")
	}

	prevRemaining := -1
	for _, row := range rec.Rows {
		if row.RemainingPayments < 0 || row.RemainingPayments > row.TotalPayments {
			add(row.Type, "remaining payments %d outside 0..%d", row.RemainingPayments, row.TotalPayments)
		}
		if row.Type == model.StageFetched {
			continue
		}

		if prevRemaining >= 0 && row.RemainingPayments > prevRemaining {
			add(row.Type, "remaining payments rose from %d to %d", prevRemaining, row.RemainingPayments)
		}
		prevRemaining = row.RemainingPayments

		if want := row.TotalPayments - row.RemainingPayments; row.MissingPayments != want && row.Type != model.StagePayoff {
			add(row.Type, "missing payments %d, expected total - remaining = %d", row.MissingPayments, want)
		}

		switch {
		case row.Type == model.StageRecurring && row.Sequence < 1:
			add(row.Type, "sequence %d, expected at least 1", row.Sequence)
		case row.Type != model.StageRecurring && row.Sequence != 0:
			add(row.Type, "sequence %d on a non-recurring stage", row.Sequence)
		}

		for _, m := range []struct {
			name string
			v    decimal.Decimal
		}{
			{"Recurring Amount", row.RecurringAmount},
			{"Payoff", row.Payoff},
			{"Total Balance Remaining", row.TotalBalanceRemaining},
		} {
			if !m.v.Equal(m.v.Round(2)) {
				add(row.Type, "%s %s has more than 2 decimal places", m.name, m.v)
			}
		}

		if row.Type == model.StagePayoff {
			if row.RemainingPayments != 0 || row.MissingPayments != 0 || row.LateFeesCount != 0 {
				add(row.Type, "counts must be zero after payoff")
			}
			if !row.Payoff.IsZero() || !row.TotalBalanceRemaining.IsZero() || !row.LateFees.IsZero() {
				add(row.Type, "amounts owed must be zero after payoff")
			}
		}
	}

	return errs
}
