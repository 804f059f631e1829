// Package ledger carries a contract's calculated plan state from one payment
// event to the next.
//
// State lives only in the persisted contract record: every operation loads
// the record, computes, and saves it back. There is no locking, so two runs
// against the same contract ID at once can lose an update. Serialize them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cleared-dev/payoffcheck/internal/auditlog"
	"github.com/cleared-dev/payoffcheck/internal/calc"
	"github.com/cleared-dev/payoffcheck/internal/id"
	"github.com/cleared-dev/payoffcheck/internal/model"
	"github.com/cleared-dev/payoffcheck/internal/report"
	"github.com/cleared-dev/payoffcheck/internal/store"
)

var (
	// ErrMissingPriorState means a payment event arrived for a contract with no
	// persisted calculation to carry forward.
	ErrMissingPriorState = errors.New("missing prior state")
	// ErrContractClosed means a recompute was attempted after payoff.
	ErrContractClosed = errors.New("contract closed")
	// ErrInvalidTransition means an event does not fit the contract's state,
	// such as a second first recurring payment.
	ErrInvalidTransition = errors.New("invalid transition")
)

// Ledger routes classified transactions to calculator steps.
type Ledger struct {
	store  store.Store
	logger *slog.Logger
	audit  *auditlog.Recorder
}

// New creates a Ledger over s. A nil logger uses slog.Default(); a nil
// recorder disables the audit trail.
func New(s store.Store, logger *slog.Logger, audit *auditlog.Recorder) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: s, logger: logger, audit: audit}
}

// Options tune Apply.
type Options struct {
	// Remaining is the remaining payment count observed after a recurring
	// payment. Nil derives it from the prior stage.
	Remaining *int
	// Report receives the soft checks made on the transaction. May be nil.
	Report *report.Report
}

// Result summarizes a Process call.
type Result struct {
	State   State
	Applied int // records routed to the ledger this call
	Seen    int // records already present in the persisted history
	Failed  int // records marked Failed, Declined or Void
}

// Initialize computes the enrollment-time state from a scraped snapshot and
// stores it as the Fetched and Calculated rows. Later stage rows and the
// transaction history are cleared, so re-initializing starts the chain over.
func (l *Ledger) Initialize(ctx context.Context, contractID string, s model.PlanSnapshot, shown model.Displayed) (model.DerivedState, error) {
	st, err := calc.ComputeInitial(s)
	if err != nil {
		return model.DerivedState{}, fmt.Errorf("computing initial state for %s: %w", contractID, err)
	}

	rec, err := l.store.Load(ctx, contractID)
	if err != nil {
		return model.DerivedState{}, fmt.Errorf("loading contract %s: %w", contractID, err)
	}
	if prev := StateOf(rec); prev.Phase > Initial {
		l.logger.Warn("re-initializing contract, later stages dropped", "contract", contractID, "state", prev)
	}
	rec.Drop(model.StageAfterFirstRecurring, model.StageRecurring, model.StagePayoff)
	rec.History = nil
	rec.Put(fetchedRow(s, shown))
	rec.Put(stageRow(st))

	if err := l.store.Save(ctx, rec); err != nil {
		return model.DerivedState{}, fmt.Errorf("saving contract %s: %w", contractID, err)
	}

	l.logger.Info("contract initialized", "contract", contractID,
		"payoff", st.PayoffAmount, "total_balance", st.TotalBalanceRemaining, "recurring", st.RecurringAmount)
	l.audit.Record(contractID, string(st.Stage), auditlog.ActionInitialize, summarize(st))
	return st, nil
}

// State returns the contract's current state.
func (l *Ledger) State(ctx context.Context, contractID string) (State, error) {
	rec, err := l.store.Load(ctx, contractID)
	if err != nil {
		return State{}, fmt.Errorf("loading contract %s: %w", contractID, err)
	}
	return StateOf(rec), nil
}

// Current returns the contract's latest calculated state.
func (l *Ledger) Current(ctx context.Context, contractID string) (model.DerivedState, State, error) {
	rec, err := l.store.Load(ctx, contractID)
	if err != nil {
		return model.DerivedState{}, State{}, fmt.Errorf("loading contract %s: %w", contractID, err)
	}
	return priorState(rec)
}

// Apply routes one transaction and saves the contract if its state advanced.
// The transaction history section is left as is; Process maintains it.
func (l *Ledger) Apply(ctx context.Context, contractID string, tx model.TransactionRecord, opts Options) (State, error) {
	rec, err := l.store.Load(ctx, contractID)
	if err != nil {
		return State{}, fmt.Errorf("loading contract %s: %w", contractID, err)
	}
	changed, err := l.apply(rec, tx, opts)
	if err != nil {
		return StateOf(rec), err
	}
	if changed {
		if err := l.store.Save(ctx, rec); err != nil {
			return State{}, fmt.Errorf("saving contract %s: %w", contractID, err)
		}
	}
	return StateOf(rec), nil
}

// Process applies a batch of scraped history. Records are taken in date
// order; those already in the persisted history are skipped, so processing
// the same batch twice advances the contract once. The persisted history is
// then replaced with the batch. Nothing is saved if any record fails to apply.
func (l *Ledger) Process(ctx context.Context, contractID string, records []model.TransactionRecord, rep *report.Report) (Result, error) {
	rec, err := l.store.Load(ctx, contractID)
	if err != nil {
		return Result{}, fmt.Errorf("loading contract %s: %w", contractID, err)
	}

	batch := append([]model.TransactionRecord(nil), records...)
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].Date.Before(batch[j].Date) })

	seen := make(map[string]int)
	for _, tx := range rec.History {
		seen[id.TransactionKey(tx)]++
	}

	var res Result
	for _, tx := range batch {
		key := id.TransactionKey(tx)
		if seen[key] > 0 {
			seen[key]--
			res.Seen++
			continue
		}
		if !tx.Success {
			res.Failed++
		}
		if _, err := l.apply(rec, tx, Options{Report: rep}); err != nil {
			return Result{State: StateOf(rec)}, fmt.Errorf("%s %s on %s: %w",
				tx.Kind, tx.Amount.StringFixed(2), tx.Date.Format("01/02/2006"), err)
		}
		res.Applied++
	}

	rec.History = batch
	if err := l.store.Save(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("saving contract %s: %w", contractID, err)
	}
	res.State = StateOf(rec)
	l.logger.Info("history processed", "contract", contractID,
		"applied", res.Applied, "seen", res.Seen, "failed", res.Failed, "state", res.State)
	return res, nil
}

// apply routes tx against rec in memory and reports whether a stage row changed.
func (l *Ledger) apply(rec *model.ContractRecord, tx model.TransactionRecord, opts Options) (bool, error) {
	contractID := rec.ContractID
	state := StateOf(rec)
	log := l.logger.With("contract", contractID, "kind", tx.Kind, "amount", tx.Amount, "date", tx.Date.Format("01/02/2006"))

	if !tx.Success {
		log.Info("skipping unsuccessful transaction", "text", tx.Raw)
		l.audit.Record(contractID, string(state.Stage()), auditlog.ActionSkip, "unsuccessful "+describe(tx))
		return false, nil
	}

	switch tx.Kind {
	case model.KindFirstRecurring, model.KindRecurring, model.KindPayoff:
	case model.KindOther:
		log.Info("unclassified transaction, no effect", "text", tx.Raw)
		l.audit.Record(contractID, string(state.Stage()), auditlog.ActionObserve, "unclassified "+describe(tx))
		return false, nil
	default:
		l.observe(rec, state, tx, opts.Report)
		log.Info("transaction observed, state unchanged")
		return false, nil
	}

	prior, state, err := priorState(rec)
	if err != nil {
		l.audit.Record(contractID, "", auditlog.ActionReject, err.Error())
		return false, err
	}
	if state.Phase == AfterPayoff {
		err := fmt.Errorf("%w: %s %s after payoff", ErrContractClosed, contractID, tx.Kind)
		l.audit.Record(contractID, string(model.StagePayoff), auditlog.ActionReject, err.Error())
		return false, err
	}

	var next model.DerivedState
	switch tx.Kind {
	case model.KindFirstRecurring:
		next, err = l.firstRecurring(rec, prior, state)
	case model.KindRecurring:
		next, err = l.recurring(rec, prior, state, opts)
	case model.KindPayoff:
		next, err = calc.Settle(prior)
	}
	if err != nil {
		l.audit.Record(contractID, string(prior.Stage), auditlog.ActionReject, err.Error())
		return false, fmt.Errorf("contract %s: %w", contractID, err)
	}

	if tx.Kind == model.KindPayoff {
		opts.Report.Positive(contractID, next.Stage, "Payoff Payment", tx.Amount)
	} else {
		opts.Report.Equal(contractID, next.Stage, "Recurring Payment", prior.RecurringAmount, tx.Amount)
	}

	rec.Put(stageRow(next))
	action := auditlog.ActionAdvance
	if next.Stage == model.StagePayoff {
		action = auditlog.ActionSettle
	}
	log.Info("stage advanced", "from", state, "to", StateOf(rec), "remaining", next.RemainingPayments, "payoff", next.PayoffAmount)
	l.audit.Record(contractID, string(next.Stage), action, summarize(next))
	return true, nil
}

func (l *Ledger) firstRecurring(rec *model.ContractRecord, prior model.DerivedState, state State) (model.DerivedState, error) {
	if state.Phase != Initial {
		return model.DerivedState{}, fmt.Errorf("%w: first recurring payment in state %s", ErrInvalidTransition, state)
	}
	calculated, _ := rec.Row(model.StageCalculated)
	next, err := calc.ComputeNext(prior, calculated.RemainingPayments-1)
	if err != nil {
		return model.DerivedState{}, err
	}
	next.Stage = model.StageAfterFirstRecurring
	next.Sequence = 0
	return next, nil
}

func (l *Ledger) recurring(rec *model.ContractRecord, prior model.DerivedState, state State, opts Options) (model.DerivedState, error) {
	remaining := prior.RemainingPayments - 1
	if opts.Remaining != nil {
		remaining = *opts.Remaining
	}
	next, err := calc.ComputeNext(prior, remaining)
	if err != nil {
		return model.DerivedState{}, err
	}

	switch state.Phase {
	case Initial:
		// The first recurring payment was not labeled as such.
		l.logger.Warn("recurring payment before first recurring, treating as first",
			"contract", rec.ContractID)
		next.Stage = model.StageAfterFirstRecurring
		next.Sequence = 0
	case AfterFirstRecurring:
		next.Stage = model.StageRecurring
		next.Sequence = 1
	default:
		next.Stage = model.StageRecurring
		next.Sequence = state.N + 1
	}
	return next, nil
}

// observe checks a transaction that does not move the plan.
func (l *Ledger) observe(rec *model.ContractRecord, state State, tx model.TransactionRecord, rep *report.Report) {
	stage := state.Stage()
	if stage == "" {
		stage = model.StageFetched
	}
	rep.Positive(rec.ContractID, stage, string(tx.Kind), tx.Amount)
	if tx.Kind == model.KindFeeUpfront {
		if calculated, ok := rec.Row(model.StageCalculated); ok {
			rep.Equal(rec.ContractID, model.StageCalculated, "Denefits Fee+Upfront", calculated.FeeUpfront, tx.Amount)
		}
	}
	l.audit.Record(rec.ContractID, string(state.Stage()), auditlog.ActionObserve, describe(tx))
}

func summarize(st model.DerivedState) string {
	return fmt.Sprintf("remaining %d, recurring %s, payoff %s, total balance %s",
		st.RemainingPayments, st.RecurringAmount.StringFixed(2), st.PayoffAmount.StringFixed(2), st.TotalBalanceRemaining.StringFixed(2))
}

func describe(tx model.TransactionRecord) string {
	return fmt.Sprintf("%s %s on %s", tx.Kind, tx.Amount.StringFixed(2), tx.Date.Format("01/02/2006"))
}
