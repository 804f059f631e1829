package model

// Stage labels one row of a persisted contract record.
type Stage string

const (
	StageFetched             Stage = "Fetched"
	StageCalculated          Stage = "Calculated"
	StageAfterFirstRecurring Stage = "After First Recurring"
	StageRecurring           Stage = "Recurring Payment"
	StagePayoff              Stage = "Payoff"
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{
	StageFetched,
	StageCalculated,
	StageAfterFirstRecurring,
	StageRecurring,
	StagePayoff,
}

// Valid reports whether s is a known stage label.
func (s Stage) Valid() bool {
	for _, st := range Stages {
		if s == st {
			return true
		}
	}
	return false
}

// Order returns the position of s in the lifecycle, or -1 for unknown labels.
func (s Stage) Order() int {
	for i, st := range Stages {
		if s == st {
			return i
		}
	}
	return -1
}
