package planner

import (
	"errors"
	"fmt"

	"dynstack.ai/internal/brp"
)

// Phase is a step of one planning cycle.
type Phase string

const (
	PhaseIdle               Phase = "IDLE"
	PhaseSkipped            Phase = "SKIPPED"
	PhasePrioritiesComputed Phase = "PRIORITIES_COMPUTED"
	PhaseStateBuilt         Phase = "STATE_BUILT"
	PhaseSearching          Phase = "SEARCHING"
	PhaseSolved             Phase = "SOLVED"
	PhaseBudgetExhausted    Phase = "BUDGET_EXHAUSTED"
	PhaseUnsolvable         Phase = "UNSOLVABLE"
	PhaseCanceled           Phase = "CANCELED"
	PhaseProjected          Phase = "PROJECTED"

	// PhaseAborted labels a cycle that returned an error. It is an outcome
	// only; no transition leads to it.
	PhaseAborted Phase = "ABORTED"
)

var ErrBadTransition = errors.New("planner: illegal phase transition")

var validTransitions = map[Phase]map[Phase]bool{
	PhaseIdle:               {PhasePrioritiesComputed: true, PhaseSkipped: true},
	PhaseSkipped:            {PhaseIdle: true},
	PhasePrioritiesComputed: {PhaseStateBuilt: true},
	PhaseStateBuilt:         {PhaseSearching: true},
	PhaseSearching:          {PhaseSolved: true, PhaseBudgetExhausted: true, PhaseUnsolvable: true, PhaseCanceled: true},
	PhaseSolved:             {PhaseProjected: true},
	PhaseBudgetExhausted:    {PhaseProjected: true},
	PhaseUnsolvable:         {PhaseProjected: true},
	PhaseCanceled:           {PhaseProjected: true},
	PhaseProjected:          {PhaseIdle: true},
}

func IsValidTransition(from, to Phase) bool {
	return validTransitions[from][to]
}

// cycle tracks the phases one Plan call walks through.
type cycle struct {
	phase Phase
	trace []Phase
}

func newCycle() *cycle {
	return &cycle{phase: PhaseIdle, trace: []Phase{PhaseIdle}}
}

func (c *cycle) advance(to Phase) error {
	if !IsValidTransition(c.phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.phase, to)
	}
	c.phase = to
	c.trace = append(c.trace, to)
	return nil
}

func (c *cycle) walk(phases ...Phase) error {
	for _, ph := range phases {
		if err := c.advance(ph); err != nil {
			return err
		}
	}
	return nil
}

// outcome is the phase a finished search leads to. A solution found before
// the budget ran out still counts as solved.
func outcome(res brp.Result) Phase {
	switch {
	case res.Solved():
		return PhaseSolved
	case res.Canceled:
		return PhaseCanceled
	case res.Exhausted:
		return PhaseBudgetExhausted
	default:
		return PhaseUnsolvable
	}
}
