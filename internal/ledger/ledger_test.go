package ledger

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/payoffcheck/internal/auditlog"
	"github.com/cleared-dev/payoffcheck/internal/calc"
	"github.com/cleared-dev/payoffcheck/internal/model"
	"github.com/cleared-dev/payoffcheck/internal/report"
	"github.com/cleared-dev/payoffcheck/internal/store"
)

const contract = "DN-1042"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func assertDec(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "%s: got %s, want %s", field, got, want)
}

func activeSnapshot() model.PlanSnapshot {
	return model.PlanSnapshot{
		PlanAmount:              dec("1000"),
		EstimatedServiceAmount:  dec("1250"),
		TotalPayments:           10,
		RemainingPayments:       6,
		ObservedRecurringAmount: dec("119.90"),
		NextPaymentDate:         "03/15/2026",
	}
}

func day(d int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func tx(kind model.TransactionKind, amount string, d int) model.TransactionRecord {
	return model.TransactionRecord{
		Date:        day(d),
		Amount:      dec(amount),
		Description: string(kind) + " payment",
		Kind:        kind,
		Success:     true,
	}
}

func newLedger(t *testing.T) (*Ledger, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	return New(s, quietLogger(), nil), s
}

func initialized(t *testing.T, snap model.PlanSnapshot) (*Ledger, *store.MemoryStore) {
	t.Helper()
	l, s := newLedger(t)
	_, err := l.Initialize(context.Background(), contract, snap, model.Displayed{})
	require.NoError(t, err)
	return l, s
}

func latest(t *testing.T, l *Ledger) model.DerivedState {
	t.Helper()
	st, _, err := l.Current(context.Background(), contract)
	require.NoError(t, err)
	return st
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	l, s := newLedger(t)

	shown := model.Displayed{PayoffAmount: dec("600"), InterestRate: dec("19.9"), DownPaymentAmount: dec("250")}
	st, err := l.Initialize(ctx, contract, activeSnapshot(), shown)
	require.NoError(t, err)
	assertDec(t, "600.00", st.PayoffAmount, "payoff")
	assertDec(t, "719.40", st.TotalBalanceRemaining, "total balance")

	rec, err := s.Load(ctx, contract)
	require.NoError(t, err)
	require.Len(t, rec.Rows, 2)

	fetched, ok := rec.Row(model.StageFetched)
	require.True(t, ok)
	assertDec(t, "19.9", fetched.InterestRate, "fetched shows displayed rate")
	assertDec(t, "600", fetched.Payoff, "fetched payoff")
	assert.Equal(t, 6, fetched.RemainingPayments)

	calculated, ok := rec.Row(model.StageCalculated)
	require.True(t, ok)
	assertDec(t, "1.199", calculated.InterestRate, "calculated rate")
	assertDec(t, "100", calculated.Principal, "principal")
	assertDec(t, "119.90", calculated.FeeUpfront, "fee upfront")
	assert.Equal(t, 4, calculated.MissingPayments)
	assert.Equal(t, contract, calculated.ContractID)

	state, err := l.State(ctx, contract)
	require.NoError(t, err)
	assert.Equal(t, State{Phase: Initial}, state)
}

func TestInitialize_InvalidInput(t *testing.T) {
	l, s := newLedger(t)
	snap := activeSnapshot()
	snap.TotalPayments = 0

	_, err := l.Initialize(context.Background(), contract, snap, model.Displayed{})
	assert.ErrorIs(t, err, calc.ErrInvalidInput)

	rec, err := s.Load(context.Background(), contract)
	require.NoError(t, err)
	assert.Empty(t, rec.Rows, "nothing saved")
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	l, _ := initialized(t, activeSnapshot())

	steps := []struct {
		tx        model.TransactionRecord
		state     State
		stage     model.Stage
		remaining int
		payoff    string
		balance   string
	}{
		{tx(model.KindFirstRecurring, "119.90", 30), State{Phase: AfterFirstRecurring}, model.StageAfterFirstRecurring, 5, "500.00", "599.50"},
		{tx(model.KindRecurring, "119.90", 60), State{Phase: AfterNthRecurring, N: 1}, model.StageRecurring, 4, "400.00", "479.60"},
		{tx(model.KindRecurring, "119.90", 90), State{Phase: AfterNthRecurring, N: 2}, model.StageRecurring, 3, "300.00", "359.70"},
		{tx(model.KindPayoff, "300.00", 100), State{Phase: AfterPayoff}, model.StagePayoff, 0, "0", "0"},
	}
	for _, step := range steps {
		state, err := l.Apply(ctx, contract, step.tx, Options{})
		require.NoError(t, err, step.tx.Kind)
		assert.Equal(t, step.state, state)

		st := latest(t, l)
		assert.Equal(t, step.stage, st.Stage)
		assert.Equal(t, step.remaining, st.RemainingPayments, step.stage)
		assertDec(t, step.payoff, st.PayoffAmount, string(step.stage)+" payoff")
		assertDec(t, step.balance, st.TotalBalanceRemaining, string(step.stage)+" balance")
		assertDec(t, "1.199", st.InterestRate, "rate carried")
		assertDec(t, "119.90", st.RecurringAmount, "installment carried")
	}

	st := latest(t, l)
	assert.Equal(t, 0, st.MissingPayments)
	assert.Equal(t, 0, st.LateFeesCount)
	assert.True(t, st.LateFees.IsZero())
}

func TestChain_AcrossRuns(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "records")
	run := func() *Ledger {
		return New(store.NewCSVStore(dir, quietLogger()), quietLogger(), nil)
	}

	snap := activeSnapshot()
	snap.MissingPayments = 2
	snap.LateFeesCount = 1
	snap.LateFeePerOccurrence = dec("25")

	st, err := run().Initialize(ctx, contract, snap, model.Displayed{})
	require.NoError(t, err)
	assertDec(t, "664.80", st.PayoffAmount, "initial payoff")

	_, err = run().Apply(ctx, contract, tx(model.KindFirstRecurring, "119.90", 30), Options{})
	require.NoError(t, err)

	st, state, err := run().Current(ctx, contract)
	require.NoError(t, err)
	assert.Equal(t, AfterFirstRecurring, state.Phase)
	// 100*(5-2) + 2*119.90 + 25, with the observed missing count from the Fetched row
	assertDec(t, "564.80", st.PayoffAmount, "payoff")
	// 119.90*5 + 25
	assertDec(t, "624.50", st.TotalBalanceRemaining, "balance")
	assert.Equal(t, 2, st.Inputs.MissingPayments)
}

func TestApply_MissingPriorState(t *testing.T) {
	l, _ := newLedger(t)
	for _, kind := range []model.TransactionKind{model.KindFirstRecurring, model.KindRecurring, model.KindPayoff} {
		_, err := l.Apply(context.Background(), contract, tx(kind, "119.90", 30), Options{})
		assert.ErrorIs(t, err, ErrMissingPriorState, kind)
	}
}

func TestApply_MissingFetchedRow(t *testing.T) {
	ctx := context.Background()
	l, s := initialized(t, activeSnapshot())
	rec, err := s.Load(ctx, contract)
	require.NoError(t, err)
	rec.Drop(model.StageFetched)
	require.NoError(t, s.Save(ctx, rec))

	_, err = l.Apply(ctx, contract, tx(model.KindFirstRecurring, "119.90", 30), Options{})
	assert.ErrorIs(t, err, ErrMissingPriorState)
}

func TestApply_FirstRecurringTwice(t *testing.T) {
	ctx := context.Background()
	l, _ := initialized(t, activeSnapshot())

	_, err := l.Apply(ctx, contract, tx(model.KindFirstRecurring, "119.90", 30), Options{})
	require.NoError(t, err)
	state, err := l.Apply(ctx, contract, tx(model.KindFirstRecurring, "119.90", 60), Options{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, AfterFirstRecurring, state.Phase)
}

func TestApply_FirstRecurringRereadsCalculated(t *testing.T) {
	ctx := context.Background()
	l, s := initialized(t, activeSnapshot())

	// The Fetched row moving on must not change where the chain starts.
	rec, err := s.Load(ctx, contract)
	require.NoError(t, err)
	fetched, _ := rec.Row(model.StageFetched)
	fetched.RemainingPayments = 2
	rec.Put(fetched)
	require.NoError(t, s.Save(ctx, rec))

	_, err = l.Apply(ctx, contract, tx(model.KindFirstRecurring, "119.90", 30), Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, latest(t, l).RemainingPayments)
}

func TestApply_RecurringBeforeFirstRecurring(t *testing.T) {
	l, _ := initialized(t, activeSnapshot())

	state, err := l.Apply(context.Background(), contract, tx(model.KindRecurring, "119.90", 30), Options{})
	require.NoError(t, err)
	assert.Equal(t, State{Phase: AfterFirstRecurring}, state)
	assert.Equal(t, 5, latest(t, l).RemainingPayments)
}

func TestApply_ObservedRemaining(t *testing.T) {
	ctx := context.Background()
	l, _ := initialized(t, activeSnapshot())
	_, err := l.Apply(ctx, contract, tx(model.KindFirstRecurring, "119.90", 30), Options{})
	require.NoError(t, err)

	remaining := 2
	state, err := l.Apply(ctx, contract, tx(model.KindRecurring, "119.90", 60), Options{Remaining: &remaining})
	require.NoError(t, err)
	assert.Equal(t, State{Phase: AfterNthRecurring, N: 1}, state)

	st := latest(t, l)
	assert.Equal(t, 2, st.RemainingPayments)
	assertDec(t, "200.00", st.PayoffAmount, "payoff")
	assertDec(t, "239.80", st.TotalBalanceRemaining, "balance")
}

func TestApply_RecurringPastZeroFails(t *testing.T) {
	ctx := context.Background()
	l, _ := initialized(t, activeSnapshot())
	_, err := l.Apply(ctx, contract, tx(model.KindFirstRecurring, "119.90", 30), Options{})
	require.NoError(t, err)

	zero := 0
	_, err = l.Apply(ctx, contract, tx(model.KindRecurring, "119.90", 60), Options{Remaining: &zero})
	require.NoError(t, err)
	_, err = l.Apply(ctx, contract, tx(model.KindRecurring, "119.90", 90), Options{})
	assert.ErrorIs(t, err, calc.ErrInvalidInput)
}

func TestApply_ClosedContract(t *testing.T) {
	ctx := context.Background()
	l, _ := initialized(t, activeSnapshot())
	_, err := l.Apply(ctx, contract, tx(model.KindPayoff, "600.00", 30), Options{})
	require.NoError(t, err)

	for _, kind := range []model.TransactionKind{model.KindFirstRecurring, model.KindRecurring, model.KindPayoff} {
		state, err := l.Apply(ctx, contract, tx(kind, "119.90", 60), Options{})
		assert.ErrorIs(t, err, ErrContractClosed, kind)
		assert.Equal(t, AfterPayoff, state.Phase)
	}

	// Observations still pass through.
	_, err = l.Apply(ctx, contract, tx(model.KindContribution, "10.00", 70), Options{})
	assert.NoError(t, err)
}

func TestApply_NonAdvancingKinds(t *testing.T) {
	ctx := context.Background()
	l, s := initialized(t, activeSnapshot())
	before, err := s.Load(ctx, contract)
	require.NoError(t, err)

	rep := report.New(dec("0.01"))
	for _, kind := range []model.TransactionKind{model.KindPartial, model.KindPayMore, model.KindContribution, model.KindOther} {
		state, err := l.Apply(ctx, contract, tx(kind, "50.00", 30), Options{Report: rep})
		require.NoError(t, err, kind)
		assert.Equal(t, Initial, state.Phase, kind)
	}

	after, err := s.Load(ctx, contract)
	require.NoError(t, err)
	assert.Equal(t, before.Rows, after.Rows)

	assert.Len(t, rep.Checks(), 3, "Other is not checked")
	assert.False(t, rep.Failed())

	_, err = l.Apply(ctx, contract, tx(model.KindPartial, "0", 31), Options{Report: rep})
	require.NoError(t, err)
	assert.True(t, rep.Failed(), "zero amount fails positivity")
}

func TestApply_FeeUpfrontCompared(t *testing.T) {
	ctx := context.Background()
	l, _ := initialized(t, activeSnapshot())

	rep := report.New(dec("0.01"))
	_, err := l.Apply(ctx, contract, tx(model.KindFeeUpfront, "119.90", 1), Options{Report: rep})
	require.NoError(t, err)
	assert.False(t, rep.Failed())

	_, err = l.Apply(ctx, contract, tx(model.KindFeeUpfront, "100.00", 2), Options{Report: rep})
	require.NoError(t, err)
	failures := rep.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "Denefits Fee+Upfront", failures[0].Field)
}

func TestApply_RecurringAmountCompared(t *testing.T) {
	ctx := context.Background()
	l, _ := initialized(t, activeSnapshot())

	rep := report.New(dec("0.01"))
	_, err := l.Apply(ctx, contract, tx(model.KindFirstRecurring, "125.00", 30), Options{Report: rep})
	require.NoError(t, err)

	failures := rep.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, model.StageAfterFirstRecurring, failures[0].Stage)
	assertDec(t, "119.90", failures[0].Expected, "expected installment")
}

func TestApply_UnsuccessfulSkipped(t *testing.T) {
	l, _ := initialized(t, activeSnapshot())
	declined := tx(model.KindFirstRecurring, "119.90", 30)
	declined.Success = false

	state, err := l.Apply(context.Background(), contract, declined, Options{})
	require.NoError(t, err)
	assert.Equal(t, Initial, state.Phase)
}

func TestProcess_Idempotent(t *testing.T) {
	ctx := context.Background()
	l, s := initialized(t, activeSnapshot())

	declined := tx(model.KindRecurring, "119.90", 60)
	declined.Success = false
	batch := []model.TransactionRecord{
		tx(model.KindFeeUpfront, "119.90", 0),
		tx(model.KindFirstRecurring, "119.90", 30),
		declined,
		tx(model.KindRecurring, "119.90", 62),
	}

	res, err := l.Process(ctx, contract, batch, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{State: State{Phase: AfterNthRecurring, N: 1}, Applied: 4, Failed: 1}, res)

	res, err = l.Process(ctx, contract, batch, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{State: State{Phase: AfterNthRecurring, N: 1}, Seen: 4}, res)

	rec, err := s.Load(ctx, contract)
	require.NoError(t, err)
	assert.Len(t, rec.History, 4)
	assert.Equal(t, 4, latest(t, l).RemainingPayments)
}

func TestProcess_AppliesOnlyNewRecords(t *testing.T) {
	ctx := context.Background()
	l, s := initialized(t, activeSnapshot())

	first := []model.TransactionRecord{
		tx(model.KindFeeUpfront, "119.90", 0),
		tx(model.KindFirstRecurring, "119.90", 30),
	}
	_, err := l.Process(ctx, contract, first, nil)
	require.NoError(t, err)

	second := append(first, tx(model.KindRecurring, "119.90", 60), tx(model.KindRecurring, "119.90", 90))
	res, err := l.Process(ctx, contract, second, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, 2, res.Seen)
	assert.Equal(t, State{Phase: AfterNthRecurring, N: 2}, res.State)

	rec, err := s.Load(ctx, contract)
	require.NoError(t, err)
	assert.Len(t, rec.History, 4, "history is replaced by the latest batch")
}

func TestProcess_SameDayRepeatsCountTwice(t *testing.T) {
	ctx := context.Background()
	l, _ := initialized(t, activeSnapshot())

	batch := []model.TransactionRecord{
		tx(model.KindFirstRecurring, "119.90", 30),
		tx(model.KindRecurring, "119.90", 60),
		tx(model.KindRecurring, "119.90", 60),
	}
	res, err := l.Process(ctx, contract, batch, nil)
	require.NoError(t, err)
	assert.Equal(t, State{Phase: AfterNthRecurring, N: 2}, res.State)

	res, err = l.Process(ctx, contract, batch, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, State{Phase: AfterNthRecurring, N: 2}, res.State)
}

func TestProcess_SortsByDate(t *testing.T) {
	ctx := context.Background()
	l, s := initialized(t, activeSnapshot())

	batch := []model.TransactionRecord{
		tx(model.KindPayoff, "400.00", 90),
		tx(model.KindRecurring, "119.90", 60),
		tx(model.KindFirstRecurring, "119.90", 30),
	}
	res, err := l.Process(ctx, contract, batch, nil)
	require.NoError(t, err)
	assert.Equal(t, AfterPayoff, res.State.Phase)

	rec, err := s.Load(ctx, contract)
	require.NoError(t, err)
	require.Len(t, rec.History, 3)
	assert.Equal(t, model.KindFirstRecurring, rec.History[0].Kind)
	assert.Equal(t, model.KindPayoff, rec.History[2].Kind)
}

func TestProcess_ErrorSavesNothing(t *testing.T) {
	ctx := context.Background()
	l, s := newLedger(t)

	batch := []model.TransactionRecord{
		tx(model.KindFeeUpfront, "119.90", 0),
		tx(model.KindFirstRecurring, "119.90", 30),
	}
	_, err := l.Process(ctx, contract, batch, nil)
	require.ErrorIs(t, err, ErrMissingPriorState)
	assert.Contains(t, err.Error(), "FirstRecurring 119.90 on 01/31/2026")

	rec, err := s.Load(ctx, contract)
	require.NoError(t, err)
	assert.Empty(t, rec.History)
}

func TestReinitializeClearsLaterStages(t *testing.T) {
	ctx := context.Background()
	l, s := initialized(t, activeSnapshot())
	_, err := l.Process(ctx, contract, []model.TransactionRecord{tx(model.KindFirstRecurring, "119.90", 30)}, nil)
	require.NoError(t, err)

	snap := activeSnapshot()
	snap.RemainingPayments = 5
	_, err = l.Initialize(ctx, contract, snap, model.Displayed{})
	require.NoError(t, err)

	rec, err := s.Load(ctx, contract)
	require.NoError(t, err)
	assert.Equal(t, State{Phase: Initial}, StateOf(rec))
	assert.Empty(t, rec.History)
	assert.Len(t, rec.Rows, 2)
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	audit := auditlog.NewRecorder("run-1")
	l := New(store.NewMemoryStore(), quietLogger(), audit)

	_, err := l.Initialize(ctx, contract, activeSnapshot(), model.Displayed{})
	require.NoError(t, err)

	declined := tx(model.KindRecurring, "119.90", 45)
	declined.Success = false
	batch := []model.TransactionRecord{
		tx(model.KindFeeUpfront, "119.90", 0),
		tx(model.KindFirstRecurring, "119.90", 30),
		declined,
		tx(model.KindOther, "5.00", 50),
		tx(model.KindPayoff, "500.00", 60),
	}
	_, err = l.Process(ctx, contract, batch, nil)
	require.NoError(t, err)
	_, err = l.Apply(ctx, contract, tx(model.KindRecurring, "119.90", 90), Options{})
	require.Error(t, err)

	var actions []string
	for _, e := range audit.Entries() {
		assert.Equal(t, "run-1", e.RunID)
		assert.Equal(t, contract, e.ContractID)
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{
		auditlog.ActionInitialize,
		auditlog.ActionObserve,
		auditlog.ActionAdvance,
		auditlog.ActionSkip,
		auditlog.ActionObserve,
		auditlog.ActionSettle,
		auditlog.ActionReject,
	}, actions)
}

func TestStateOf(t *testing.T) {
	rec := &model.ContractRecord{ContractID: contract}
	assert.Equal(t, State{Phase: Uninitialized}, StateOf(rec))

	rec.Put(model.StageRow{Type: model.StageFetched})
	assert.Equal(t, State{Phase: Uninitialized}, StateOf(rec), "Fetched alone is not a calculation")

	rec.Put(model.StageRow{Type: model.StageCalculated})
	assert.Equal(t, State{Phase: Initial}, StateOf(rec))

	rec.Put(model.StageRow{Type: model.StageAfterFirstRecurring})
	assert.Equal(t, State{Phase: AfterFirstRecurring}, StateOf(rec))

	rec.Put(model.StageRow{Type: model.StageRecurring, Sequence: 3})
	assert.Equal(t, State{Phase: AfterNthRecurring, N: 3}, StateOf(rec))

	rec.Put(model.StageRow{Type: model.StagePayoff})
	assert.Equal(t, State{Phase: AfterPayoff}, StateOf(rec))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Initial", State{Phase: Initial}.String())
	assert.Equal(t, "AfterNthRecurring(4)", State{Phase: AfterNthRecurring, N: 4}.String())
	assert.Equal(t, "Phase(9)", Phase(9).String())
	assert.Equal(t, model.StageRecurring, State{Phase: AfterNthRecurring, N: 1}.Stage())
	assert.Equal(t, model.Stage(""), State{}.Stage())
}
