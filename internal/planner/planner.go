// Package planner turns hot-storage world snapshots into crane schedules by
// solving a block relocation problem per tick.
package planner

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"dynstack.ai/internal/brp"
	"dynstack.ai/internal/protocol"
	"dynstack.ai/internal/tuning"
)

// Report describes one planning cycle, whether or not it produced a schedule.
type Report struct {
	Cycle   uint64  `json:"cycle"`
	Outcome Phase   `json:"outcome"`
	Trace   []Phase `json:"trace"`

	Expanded  int  `json:"expanded"`
	Solutions int  `json:"solutions"`
	Exhausted bool `json:"exhausted,omitempty"`
	Canceled  bool `json:"canceled,omitempty"`

	DefaultedPriorities int        `json:"defaulted_priorities,omitempty"`
	Solution            []brp.Move `json:"solution,omitempty"`
	ElapsedUs           int64      `json:"elapsed_us"`
}

// Planner owns the schedule sequence counter for its lifetime. Plan may be
// called from several goroutines but is normally driven by one reader loop.
type Planner struct {
	tune tuning.Tuning
	log  *log.Logger

	mu     sync.Mutex
	seq    uint64
	cycles uint64
}

func New(tune tuning.Tuning, logger *log.Logger) *Planner {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Planner{tune: tune, log: logger}
}

func (p *Planner) Tuning() tuning.Tuning { return p.tune }

// Sequence returns the last sequence number handed out.
func (p *Planner) Sequence() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

// Plan runs one cycle for w. A nil schedule with a nil error means there is
// nothing worth sending this tick. An error means the cycle was aborted; it
// wraps brp.ErrInvariant when move generation misbehaved.
func (p *Planner) Plan(ctx context.Context, w protocol.World) (*protocol.CraneSchedule, Report, error) {
	start := time.Now()
	c := newCycle()
	rep := Report{Cycle: p.nextCycle()}
	sched, err := p.plan(ctx, w, c, &rep)
	if err != nil {
		rep.Outcome = PhaseAborted
	}
	rep.Trace = c.trace
	rep.ElapsedUs = time.Since(start).Microseconds()
	return sched, rep, err
}

func (p *Planner) plan(ctx context.Context, w protocol.World, c *cycle, rep *Report) (*protocol.CraneSchedule, error) {
	if !p.tune.ReplanWhileBusy && len(w.Crane.Schedule.Moves) > 0 {
		rep.Outcome = PhaseSkipped
		return nil, c.walk(PhaseSkipped, PhaseIdle)
	}

	table := Prioritize(w)
	if err := c.advance(PhasePrioritiesComputed); err != nil {
		return nil, err
	}

	initial, defaulted, err := BuildState(w, table, p.tune)
	if err != nil {
		return nil, fmt.Errorf("build state: %w", err)
	}
	rep.DefaultedPriorities = defaulted
	if defaulted > 0 {
		p.log.Printf("cycle=%d: %d blocks missing from priority table, using %d", rep.Cycle, defaulted, p.tune.DefaultPriority)
	}
	if err := c.walk(PhaseStateBuilt, PhaseSearching); err != nil {
		return nil, err
	}

	sctx := ctx
	if d := p.tune.SearchTimeout(); d > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	res, err := brp.SearchContext(sctx, initial, p.tune.SearchBudget)
	rep.Expanded, rep.Solutions = res.Expanded, res.Solutions
	rep.Exhausted, rep.Canceled = res.Exhausted, res.Canceled
	if err != nil {
		p.log.Printf("cycle=%d: search aborted: %v", rep.Cycle, err)
		return nil, fmt.Errorf("search: %w", err)
	}
	rep.Solution = res.Moves
	rep.Outcome = outcome(res)
	switch rep.Outcome {
	case PhaseBudgetExhausted:
		p.log.Printf("cycle=%d: budget %d exhausted without a solution", rep.Cycle, p.tune.SearchBudget)
	case PhaseCanceled:
		p.log.Printf("cycle=%d: search canceled after %d states: %v", rep.Cycle, res.Expanded, sctx.Err())
	}

	moves := Project(w, res.Moves, p.tune.MaxMoves)
	if err := c.walk(rep.Outcome, PhaseProjected, PhaseIdle); err != nil {
		return nil, err
	}
	if len(moves) == 0 {
		return nil, nil
	}

	sched := &protocol.CraneSchedule{SequenceNr: p.nextSequence(w.Crane.Schedule.SequenceNr), Moves: moves}
	p.log.Printf("cycle=%d: schedule seq=%d moves=%v (solution %d moves, %d states)", rep.Cycle, sched.SequenceNr, moves, len(res.Moves), res.Expanded)
	return sched, nil
}

// SetSequence sets the counter to seq, as if a schedule with that number had
// just been sent. It may lower the counter.
func (p *Planner) SetSequence(seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq = seq
}

func (p *Planner) nextCycle() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycles++
	return p.cycles
}

// nextSequence never lags the sequence number the simulator last accepted.
func (p *Planner) nextSequence(current uint64) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if current > p.seq {
		p.seq = current
	}
	p.seq++
	return p.seq
}
