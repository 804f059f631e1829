package ledger

import (
	"fmt"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// Phase is a contract's position in its payment lifecycle.
type Phase int

const (
	Uninitialized Phase = iota
	Initial
	AfterFirstRecurring
	AfterNthRecurring
	AfterPayoff
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "Uninitialized"
	case Initial:
		return "Initial"
	case AfterFirstRecurring:
		return "AfterFirstRecurring"
	case AfterNthRecurring:
		return "AfterNthRecurring"
	case AfterPayoff:
		return "AfterPayoff"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// State is a Phase plus, for AfterNthRecurring, the recurring payment count.
type State struct {
	Phase Phase
	N     int
}

func (s State) String() string {
	if s.Phase == AfterNthRecurring {
		return fmt.Sprintf("AfterNthRecurring(%d)", s.N)
	}
	return s.Phase.String()
}

// Stage returns the stage row label holding the state's latest values.
func (s State) Stage() model.Stage {
	switch s.Phase {
	case Initial:
		return model.StageCalculated
	case AfterFirstRecurring:
		return model.StageAfterFirstRecurring
	case AfterNthRecurring:
		return model.StageRecurring
	case AfterPayoff:
		return model.StagePayoff
	}
	return ""
}

// StateOf derives a contract's state from the stage rows its record holds.
// The furthest stage present wins.
func StateOf(rec *model.ContractRecord) State {
	if _, ok := rec.Row(model.StagePayoff); ok {
		return State{Phase: AfterPayoff}
	}
	if row, ok := rec.Row(model.StageRecurring); ok {
		return State{Phase: AfterNthRecurring, N: row.Sequence}
	}
	if _, ok := rec.Row(model.StageAfterFirstRecurring); ok {
		return State{Phase: AfterFirstRecurring}
	}
	if _, ok := rec.Row(model.StageCalculated); ok {
		return State{Phase: Initial}
	}
	return State{Phase: Uninitialized}
}
