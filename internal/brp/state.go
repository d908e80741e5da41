package brp

import "fmt"

// Move relocates Block from stack Src to stack Tgt. Tgt may be the handover id.
type Move struct {
	Src   int `json:"src"`
	Tgt   int `json:"tgt"`
	Block int `json:"block"`
}

func (m Move) String() string {
	return fmt.Sprintf("block %d: %d->%d", m.Block, m.Src, m.Tgt)
}

type Options struct {
	// ExcludeArrivalTarget keeps relocations off the arrival stack.
	ExcludeArrivalTarget bool
}

// State is one node of the search: every stack plus the moves that led here.
//
// States are values. Apply returns a new State and leaves the receiver
// untouched; stacks a move does not touch share their block slices with the
// parent, which is safe because no slice is ever written after construction.
type State struct {
	stacks []Stack
	index  map[int]int // stack id -> position in stacks, read-only after NewState
	moves  []Move

	arrivalID  int
	handoverID int
	opts       Options
}

// NewState builds the initial state. Stacks are searched in the given order;
// the arrival stack must be one of them, the handover must not.
func NewState(stacks []Stack, arrivalID, handoverID int, opts Options) (State, error) {
	s := State{
		stacks:     make([]Stack, len(stacks)),
		index:      make(map[int]int, len(stacks)),
		arrivalID:  arrivalID,
		handoverID: handoverID,
		opts:       opts,
	}
	for i, st := range stacks {
		if st.ID == handoverID {
			return State{}, fmt.Errorf("%w: stack %d uses the handover id", ErrInvalidLayout, st.ID)
		}
		if _, dup := s.index[st.ID]; dup {
			return State{}, fmt.Errorf("%w: duplicate stack id %d", ErrInvalidLayout, st.ID)
		}
		if st.MaxHeight < 0 || len(st.Blocks) > st.MaxHeight {
			return State{}, fmt.Errorf("%w: stack %d holds %d blocks, max height %d", ErrInvalidLayout, st.ID, len(st.Blocks), st.MaxHeight)
		}
		st.Blocks = append([]Block(nil), st.Blocks...)
		s.stacks[i] = st
		s.index[st.ID] = i
	}
	if _, ok := s.index[arrivalID]; !ok {
		return State{}, fmt.Errorf("%w: arrival stack %d missing", ErrInvalidLayout, arrivalID)
	}
	return s, nil
}

func (s State) HandoverID() int { return s.handoverID }
func (s State) ArrivalID() int  { return s.arrivalID }

// Moves returns a copy of the move history.
func (s State) Moves() []Move { return append([]Move(nil), s.moves...) }

func (s State) Depth() int { return len(s.moves) }

// Stacks returns a deep copy of the stacks.
func (s State) Stacks() []Stack {
	out := make([]Stack, len(s.stacks))
	for i, st := range s.stacks {
		st.Blocks = append([]Block(nil), st.Blocks...)
		out[i] = st
	}
	return out
}

// Stack returns a copy of the stack with the given id.
func (s State) Stack(id int) (Stack, bool) {
	i, ok := s.index[id]
	if !ok {
		return Stack{}, false
	}
	st := s.stacks[i]
	st.Blocks = append([]Block(nil), st.Blocks...)
	return st, true
}

// IsSolved reports whether every stack is empty. The handover is not a stack.
func (s State) IsSolved() bool {
	for _, st := range s.stacks {
		if st.Len() > 0 {
			return false
		}
	}
	return true
}

// ForcedMoves appends to dst[:0] the only moves worth exploring from s.
//
// The target stack is the one holding the globally most urgent block. If
// that block is on top it goes to the handover. Otherwise the top of the
// target stack is relocated, one candidate per other stack with space. An
// empty result is a dead end.
func (s State) ForcedMoves(dst []Move) []Move {
	dst = dst[:0]

	src := -1
	var urgent Block
	for i, st := range s.stacks {
		b, ok := st.MostUrgent()
		if !ok {
			continue
		}
		if src < 0 || b.Prio < urgent.Prio {
			src, urgent = i, b
		}
	}
	if src < 0 {
		return dst
	}

	from := s.stacks[src]
	top, _ := from.Top()
	if top.ID == urgent.ID {
		return append(dst, Move{Src: from.ID, Tgt: s.handoverID, Block: top.ID})
	}
	for i, to := range s.stacks {
		if i == src || !to.HasSpace() {
			continue
		}
		if s.opts.ExcludeArrivalTarget && to.ID == s.arrivalID {
			continue
		}
		dst = append(dst, Move{Src: from.ID, Tgt: to.ID, Block: top.ID})
	}
	return dst
}

// Apply returns the state after m. Any error wraps ErrInvariant.
func (s State) Apply(m Move) (State, error) {
	si, ok := s.index[m.Src]
	if !ok {
		return State{}, fmt.Errorf("%w: %d (%s)", ErrUnknownStack, m.Src, m)
	}
	from := s.stacks[si]
	top, ok := from.Top()
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrEmptyStack, m)
	}
	if top.ID != m.Block {
		return State{}, fmt.Errorf("%w: %s, top is %d", ErrBlockMismatch, m, top.ID)
	}

	next := s
	next.stacks = append([]Stack(nil), s.stacks...)
	next.stacks[si].Blocks = append([]Block(nil), from.Blocks[:from.Len()-1]...)

	if m.Tgt != s.handoverID {
		ti, ok := s.index[m.Tgt]
		if !ok {
			return State{}, fmt.Errorf("%w: %d (%s)", ErrUnknownStack, m.Tgt, m)
		}
		to := next.stacks[ti]
		blocks := make([]Block, to.Len(), to.Len()+1)
		copy(blocks, to.Blocks)
		to.Blocks = append(blocks, top)
		if to.Len() > to.MaxHeight {
			return State{}, fmt.Errorf("%w: %s, height %d > %d", ErrCapacity, m, to.Len(), to.MaxHeight)
		}
		next.stacks[ti] = to
	}

	// Full slice expression: siblings of s must never share an appended tail.
	next.moves = append(s.moves[:len(s.moves):len(s.moves)], m)
	return next, nil
}
