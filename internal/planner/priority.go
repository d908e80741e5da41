package planner

import (
	"sort"

	"dynstack.ai/internal/brp"
	"dynstack.ai/internal/protocol"
	"dynstack.ai/internal/tuning"
)

// Table maps block id to retrieval rank; rank 0 is retrieved first.
type Table map[int]int

// Prioritize ranks every block in the production stack and the buffers by
// due time. Equal due times keep their order: production bottom to top, then
// each buffer bottom to top in snapshot order.
func Prioritize(w protocol.World) Table {
	n := len(w.Production.BottomToTop)
	for _, s := range w.Buffers {
		n += len(s.BottomToTop)
	}
	blocks := make([]protocol.Block, 0, n)
	blocks = append(blocks, w.Production.BottomToTop...)
	for _, s := range w.Buffers {
		blocks = append(blocks, s.BottomToTop...)
	}
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].DueMs < blocks[j].DueMs })

	t := make(Table, len(blocks))
	for rank, b := range blocks {
		t[b.ID] = rank
	}
	return t
}

// BuildState turns a snapshot into the initial search state. It also returns
// how many blocks were missing from table and got tune.DefaultPriority.
func BuildState(w protocol.World, table Table, tune tuning.Tuning) (brp.State, int, error) {
	defaulted := 0
	convert := func(s protocol.Stack) brp.Stack {
		out := brp.Stack{ID: s.ID, MaxHeight: s.MaxHeight, Blocks: make([]brp.Block, 0, len(s.BottomToTop))}
		for _, b := range s.BottomToTop {
			prio, ok := table[b.ID]
			if !ok {
				prio = tune.DefaultPriority
				defaulted++
			}
			out.Blocks = append(out.Blocks, brp.Block{ID: b.ID, Prio: prio})
		}
		return out
	}

	stacks := make([]brp.Stack, 0, 1+len(w.Buffers))
	stacks = append(stacks, convert(w.Production))
	for _, s := range w.Buffers {
		stacks = append(stacks, convert(s))
	}
	st, err := brp.NewState(stacks, w.Production.ID, w.Handover.ID, brp.Options{
		ExcludeArrivalTarget: tune.ExcludeArrivalTarget,
	})
	return st, defaulted, err
}
