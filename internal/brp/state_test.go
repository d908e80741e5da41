package brp

import (
	"errors"
	"testing"
)

const handover = 99

func mustState(t *testing.T, stacks []Stack, opts Options) State {
	t.Helper()
	s, err := NewState(stacks, stacks[0].ID, handover, opts)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	return s
}

func TestStack_TopAndMostUrgent(t *testing.T) {
	var empty Stack
	if _, ok := empty.Top(); ok {
		t.Fatalf("empty stack has a top")
	}
	if _, ok := empty.MostUrgent(); ok {
		t.Fatalf("empty stack has a most urgent block")
	}

	s := Stack{ID: 1, MaxHeight: 4, Blocks: []Block{{ID: 1, Prio: 5}, {ID: 2, Prio: 2}, {ID: 3, Prio: 2}, {ID: 4, Prio: 7}}}
	top, _ := s.Top()
	if top.ID != 4 {
		t.Fatalf("top=%d want 4", top.ID)
	}
	u, _ := s.MostUrgent()
	if u.ID != 2 {
		t.Fatalf("most urgent=%d want 2 (lowest block wins ties)", u.ID)
	}
	if s.HasSpace() {
		t.Fatalf("full stack reports space")
	}
}

func TestNewState_RejectsBadLayouts(t *testing.T) {
	cases := map[string][]Stack{
		"duplicate id":  {{ID: 0, MaxHeight: 1}, {ID: 0, MaxHeight: 1}},
		"handover id":   {{ID: 0, MaxHeight: 1}, {ID: handover, MaxHeight: 1}},
		"over capacity": {{ID: 0, MaxHeight: 1, Blocks: []Block{{ID: 1}, {ID: 2}}}},
	}
	for name, stacks := range cases {
		if _, err := NewState(stacks, 0, handover, Options{}); !errors.Is(err, ErrInvalidLayout) {
			t.Fatalf("%s: err=%v want ErrInvalidLayout", name, err)
		}
	}
	if _, err := NewState([]Stack{{ID: 1, MaxHeight: 1}}, 0, handover, Options{}); !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("missing arrival: err=%v want ErrInvalidLayout", err)
	}
}

func TestNewState_CopiesInput(t *testing.T) {
	blocks := []Block{{ID: 1, Prio: 0}}
	s := mustState(t, []Stack{{ID: 0, MaxHeight: 2, Blocks: blocks}}, Options{})
	blocks[0].ID = 42
	st, _ := s.Stack(0)
	if st.Blocks[0].ID != 1 {
		t.Fatalf("state aliased caller slice")
	}
}

func TestIsSolved(t *testing.T) {
	s := mustState(t, []Stack{{ID: 0, MaxHeight: 2}, {ID: 1, MaxHeight: 2}}, Options{})
	if !s.IsSolved() {
		t.Fatalf("all-empty state not solved")
	}
	if moves := s.ForcedMoves(nil); len(moves) != 0 {
		t.Fatalf("solved state has forced moves: %v", moves)
	}

	s = mustState(t, []Stack{{ID: 0, MaxHeight: 2}, {ID: 1, MaxHeight: 2, Blocks: []Block{{ID: 7}}}}, Options{})
	if s.IsSolved() {
		t.Fatalf("non-empty state solved")
	}
}

func TestForcedMoves_UrgentOnTopGoesToHandover(t *testing.T) {
	s := mustState(t, []Stack{
		{ID: 0, MaxHeight: 2},
		{ID: 1, MaxHeight: 2, Blocks: []Block{{ID: 10, Prio: 1}, {ID: 11, Prio: 0}}},
	}, Options{})

	moves := s.ForcedMoves(nil)
	want := Move{Src: 1, Tgt: handover, Block: 11}
	if len(moves) != 1 || moves[0] != want {
		t.Fatalf("moves=%v want [%v]", moves, want)
	}
}

func TestForcedMoves_BuriedUrgentRelocatesTop(t *testing.T) {
	s := mustState(t, []Stack{
		{ID: 0, MaxHeight: 2},
		{ID: 1, MaxHeight: 2, Blocks: []Block{{ID: 11, Prio: 0}, {ID: 10, Prio: 1}}},
		{ID: 2, MaxHeight: 2},
		{ID: 3, MaxHeight: 1, Blocks: []Block{{ID: 12, Prio: 2}}},
	}, Options{})

	moves := s.ForcedMoves(nil)
	want := []Move{{Src: 1, Tgt: 0, Block: 10}, {Src: 1, Tgt: 2, Block: 10}}
	if len(moves) != len(want) {
		t.Fatalf("moves=%v want %v", moves, want)
	}
	for i := range want {
		if moves[i] != want[i] {
			t.Fatalf("moves[%d]=%v want %v", i, moves[i], want[i])
		}
	}
}

func TestForcedMoves_ExcludeArrivalTarget(t *testing.T) {
	s := mustState(t, []Stack{
		{ID: 0, MaxHeight: 2},
		{ID: 1, MaxHeight: 2, Blocks: []Block{{ID: 11, Prio: 0}, {ID: 10, Prio: 1}}},
		{ID: 2, MaxHeight: 2},
	}, Options{ExcludeArrivalTarget: true})

	moves := s.ForcedMoves(nil)
	if len(moves) != 1 || moves[0].Tgt != 2 {
		t.Fatalf("moves=%v want single relocation to 2", moves)
	}
}

func TestForcedMoves_DeadEnd(t *testing.T) {
	s := mustState(t, []Stack{
		{ID: 0, MaxHeight: 2, Blocks: []Block{{ID: 1, Prio: 0}, {ID: 2, Prio: 1}}},
	}, Options{})
	if moves := s.ForcedMoves(nil); len(moves) != 0 {
		t.Fatalf("moves=%v want none", moves)
	}
}

func TestForcedMoves_ReusesBuffer(t *testing.T) {
	s := mustState(t, []Stack{{ID: 0, MaxHeight: 1, Blocks: []Block{{ID: 1}}}}, Options{})
	buf := make([]Move, 3, 8)
	moves := s.ForcedMoves(buf)
	if len(moves) != 1 || &moves[0] != &buf[0] {
		t.Fatalf("buffer not reused: %v", moves)
	}
}

func TestApply_LeavesParentUntouched(t *testing.T) {
	parent := mustState(t, []Stack{
		{ID: 0, MaxHeight: 3},
		{ID: 1, MaxHeight: 3, Blocks: []Block{{ID: 11, Prio: 0}, {ID: 10, Prio: 1}}},
		{ID: 2, MaxHeight: 3},
	}, Options{})

	a, err := parent.Apply(Move{Src: 1, Tgt: 0, Block: 10})
	if err != nil {
		t.Fatalf("apply a: %v", err)
	}
	b, err := parent.Apply(Move{Src: 1, Tgt: 2, Block: 10})
	if err != nil {
		t.Fatalf("apply b: %v", err)
	}
	// Grow both children to catch shared backing arrays.
	a2, err := a.Apply(Move{Src: 1, Tgt: 2, Block: 11})
	if err != nil {
		t.Fatalf("apply a2: %v", err)
	}
	b2, err := b.Apply(Move{Src: 1, Tgt: handover, Block: 11})
	if err != nil {
		t.Fatalf("apply b2: %v", err)
	}

	if st, _ := parent.Stack(1); st.Len() != 2 || parent.Depth() != 0 {
		t.Fatalf("parent mutated: %+v depth=%d", st, parent.Depth())
	}
	if st, _ := a.Stack(0); st.Len() != 1 || st.Blocks[0].ID != 10 {
		t.Fatalf("a stack 0=%+v", st)
	}
	if st, _ := a2.Stack(2); st.Len() != 1 || st.Blocks[0].ID != 11 {
		t.Fatalf("a2 stack 2=%+v", st)
	}
	if st, _ := b2.Stack(2); st.Len() != 1 || st.Blocks[0].ID != 10 {
		t.Fatalf("b2 stack 2=%+v", st)
	}
	if got := a2.Moves(); len(got) != 2 || got[1].Tgt != 2 {
		t.Fatalf("a2 moves=%v", got)
	}
	if got := b2.Moves(); len(got) != 2 || got[1].Tgt != handover {
		t.Fatalf("b2 moves=%v", got)
	}
}

func TestApply_InvariantViolations(t *testing.T) {
	s := mustState(t, []Stack{
		{ID: 0, MaxHeight: 1, Blocks: []Block{{ID: 1}}},
		{ID: 1, MaxHeight: 1, Blocks: []Block{{ID: 2}}},
		{ID: 2, MaxHeight: 1},
	}, Options{})

	cases := []struct {
		name string
		move Move
		want error
	}{
		{"mismatch", Move{Src: 0, Tgt: 2, Block: 2}, ErrBlockMismatch},
		{"capacity", Move{Src: 0, Tgt: 1, Block: 1}, ErrCapacity},
		{"unknown source", Move{Src: 7, Tgt: 2, Block: 1}, ErrUnknownStack},
		{"unknown target", Move{Src: 0, Tgt: 7, Block: 1}, ErrUnknownStack},
		{"empty source", Move{Src: 2, Tgt: 0, Block: 1}, ErrEmptyStack},
	}
	for _, tc := range cases {
		_, err := s.Apply(tc.move)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err=%v want %v", tc.name, err, tc.want)
		}
		if !errors.Is(err, ErrInvariant) {
			t.Fatalf("%s: err=%v does not wrap ErrInvariant", tc.name, err)
		}
	}
}
