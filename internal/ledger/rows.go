package ledger

import (
	"fmt"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// fetchedRow records the scraped inputs and the values the application displayed.
func fetchedRow(s model.PlanSnapshot, shown model.Displayed) model.StageRow {
	return model.StageRow{
		Type:                  model.StageFetched,
		ServiceAmount:         s.EstimatedServiceAmount,
		PlanAmount:            s.PlanAmount,
		DownPayment:           shown.DownPaymentAmount,
		InterestRate:          shown.InterestRate,
		TotalPayments:         s.TotalPayments,
		RemainingPayments:     s.RemainingPayments,
		RecurringAmount:       s.ObservedRecurringAmount,
		TotalBalanceRemaining: shown.TotalBalanceRemaining,
		Payoff:                shown.PayoffAmount,
		NextPaymentDate:       s.NextPaymentDate,
		MissingPayments:       s.MissingPayments,
		LateFeesCount:         s.LateFeesCount,
		LateFees:              s.LateFeePerOccurrence,
		FixedFee:              s.FixedFeeAmount,
		Donated:               s.DonatedAmount,
	}
}

// stageRow records a calculated state.
func stageRow(st model.DerivedState) model.StageRow {
	return model.StageRow{
		Type:                  st.Stage,
		ServiceAmount:         st.Inputs.EstimatedServiceAmount,
		PlanAmount:            st.Inputs.PlanAmount,
		DownPayment:           st.DownPaymentAmount,
		InterestRate:          st.InterestRate,
		TotalPayments:         st.Inputs.TotalPayments,
		RemainingPayments:     st.RemainingPayments,
		Principal:             st.PrincipalPerPayment,
		RecurringAmount:       st.RecurringAmount,
		TotalBalanceRemaining: st.TotalBalanceRemaining,
		Payoff:                st.PayoffAmount,
		NextPaymentDate:       st.Inputs.NextPaymentDate,
		MissingPayments:       st.MissingPayments,
		LateFeesCount:         st.LateFeesCount,
		LateFees:              st.LateFees,
		FixedFee:              st.Inputs.FixedFeeAmount,
		Donated:               st.Inputs.DonatedAmount,
		InterestAmount:        st.InterestAmount,
		FeeUpfront:            st.FeeUpfrontAmount,
		Sequence:              st.Sequence,
	}
}

// snapshotOf rebuilds the scraped inputs from a Fetched row.
func snapshotOf(f model.StageRow) model.PlanSnapshot {
	return model.PlanSnapshot{
		PlanAmount:              f.PlanAmount,
		EstimatedServiceAmount:  f.ServiceAmount,
		TotalPayments:           f.TotalPayments,
		RemainingPayments:       f.RemainingPayments,
		MissingPayments:         f.MissingPayments,
		LateFeesCount:           f.LateFeesCount,
		LateFeePerOccurrence:    f.LateFees,
		ObservedRecurringAmount: f.RecurringAmount,
		DonatedAmount:           f.Donated,
		FixedFeeAmount:          f.FixedFee,
		NextPaymentDate:         f.NextPaymentDate,
	}
}

// priorState rebuilds the DerivedState of the latest stage in rec. Inputs
// come from the Fetched row; rate, installment and remaining payments come
// from the stage row.
func priorState(rec *model.ContractRecord) (model.DerivedState, State, error) {
	state := StateOf(rec)
	if state.Phase == Uninitialized {
		return model.DerivedState{}, state, fmt.Errorf("%w: contract %s has no Calculated row", ErrMissingPriorState, rec.ContractID)
	}
	fetched, ok := rec.Row(model.StageFetched)
	if !ok {
		return model.DerivedState{}, state, fmt.Errorf("%w: contract %s has no Fetched row", ErrMissingPriorState, rec.ContractID)
	}
	row, _ := rec.Row(state.Stage())

	inputs := snapshotOf(fetched)
	inputs.RemainingPayments = row.RemainingPayments

	return model.DerivedState{
		Stage:                 row.Type,
		Sequence:              row.Sequence,
		Inputs:                inputs,
		InterestRate:          row.InterestRate,
		PrincipalPerPayment:   row.Principal,
		RecurringAmount:       row.RecurringAmount,
		InterestAmount:        row.InterestAmount,
		PayoffAmount:          row.Payoff,
		TotalBalanceRemaining: row.TotalBalanceRemaining,
		DownPaymentAmount:     row.DownPayment,
		FeeUpfrontAmount:      row.FeeUpfront,
		RemainingPayments:     row.RemainingPayments,
		MissingPayments:       row.MissingPayments,
		LateFeesCount:         row.LateFeesCount,
		LateFees:              row.LateFees,
	}, state, nil
}
