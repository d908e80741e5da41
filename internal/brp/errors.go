package brp

import (
	"errors"
	"fmt"
)

// ErrInvariant marks a move that the state cannot legally take. Seeing one
// means move generation is broken; the planning cycle must be aborted.
var ErrInvariant = errors.New("brp: invariant violation")

var (
	ErrUnknownStack  = fmt.Errorf("%w: unknown stack", ErrInvariant)
	ErrEmptyStack    = fmt.Errorf("%w: source stack is empty", ErrInvariant)
	ErrBlockMismatch = fmt.Errorf("%w: block is not on top of source", ErrInvariant)
	ErrCapacity      = fmt.Errorf("%w: target stack over capacity", ErrInvariant)
)

// ErrInvalidLayout is returned by NewState for stacks that cannot form a
// search state (duplicate ids, overfull stacks, a stack using the handover id).
var ErrInvalidLayout = errors.New("brp: invalid stack layout")
