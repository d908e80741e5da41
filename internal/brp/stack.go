// Package brp solves a restricted offline Block Relocation Problem: retrieve
// prioritized blocks from capacity-bounded stacks using forced moves only.
package brp

// Block is a block with its retrieval priority. Lower priority is more urgent.
type Block struct {
	ID   int `json:"id"`
	Prio int `json:"prio"`
}

// Stack holds blocks bottom to top. Only the last element is reachable.
//
// A Stack is never edited in place once it is part of a State; applying a
// move builds fresh block slices for the stacks it touches.
type Stack struct {
	ID        int     `json:"id"`
	MaxHeight int     `json:"max_height"`
	Blocks    []Block `json:"blocks"`
}

func (s Stack) Len() int { return len(s.Blocks) }

func (s Stack) HasSpace() bool { return len(s.Blocks) < s.MaxHeight }

// Top returns the block on top of the stack.
func (s Stack) Top() (Block, bool) {
	if len(s.Blocks) == 0 {
		return Block{}, false
	}
	return s.Blocks[len(s.Blocks)-1], true
}

// MostUrgent returns the block with the lowest priority value. Ties resolve
// to the lowest block. O(height); not cached.
func (s Stack) MostUrgent() (Block, bool) {
	if len(s.Blocks) == 0 {
		return Block{}, false
	}
	best := s.Blocks[0]
	for _, b := range s.Blocks[1:] {
		if b.Prio < best.Prio {
			best = b
		}
	}
	return best, true
}
