package brp

import (
	"context"
	"fmt"
)

// DefaultBudget is the number of states a search expands when not configured.
const DefaultBudget = 10000

// ctxPollEvery is how many states are expanded between context checks.
const ctxPollEvery = 256

// Result is the outcome of one search.
type Result struct {
	// Moves is the shortest solution found, empty when none was found.
	Moves []Move

	Expanded  int  // states taken off the pending stack and examined
	Solutions int  // solved states seen
	Exhausted bool // the budget ran out before the pending stack emptied
	Canceled  bool // the context ended the search
}

func (r Result) Solved() bool { return r.Solutions > 0 }

// Search runs a budgeted depth-first search over forced moves from initial.
func Search(initial State, budget int) (Result, error) {
	return SearchContext(context.Background(), initial, budget)
}

// SearchContext is Search with a context that may end the search early. The
// best solution found before cancellation is returned without error.
//
// A larger budget never yields a longer solution: the expansion order is
// fixed, so a bigger budget only sees more of the same sequence.
func SearchContext(ctx context.Context, initial State, budget int) (Result, error) {
	var (
		res     Result
		best    []Move
		forced  []Move
		pending = []State{initial}
	)
	for len(pending) > 0 {
		state := pending[len(pending)-1]
		pending[len(pending)-1] = State{}
		pending = pending[:len(pending)-1]

		if budget <= 0 {
			res.Exhausted = true
			break
		}
		if res.Expanded%ctxPollEvery == 0 && ctx.Err() != nil {
			res.Canceled = true
			break
		}
		budget--
		res.Expanded++

		if state.IsSolved() {
			res.Solutions++
			if res.Solutions == 1 || state.Depth() < len(best) {
				best = state.Moves()
			}
			continue
		}
		forced = state.ForcedMoves(forced)
		for _, m := range forced {
			next, err := state.Apply(m)
			if err != nil {
				res.Moves = best
				return res, fmt.Errorf("expand depth %d: %w", state.Depth(), err)
			}
			pending = append(pending, next)
		}
	}
	if best == nil {
		best = []Move{}
	}
	res.Moves = best
	return res, nil
}
