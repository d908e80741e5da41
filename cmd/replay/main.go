package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	persistlog "dynstack.ai/internal/persistence/log"
	"dynstack.ai/internal/planner"
	"dynstack.ai/internal/protocol"
)

func main() {
	var (
		plansDir = flag.String("plans", "./data/plans", "dir containing plans-*.jsonl.zst")
		fromTick = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	files, err := persistlog.PlanFiles(*plansDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list plans:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no plan files found in", *plansDir)
		os.Exit(1)
	}

	v := &verifier{from: *fromTick, to: *toTick}
	for _, path := range files {
		err := persistlog.ReadPlans(path, v.check)
		if errors.Is(err, errDone) {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("replay ok: checked=%d cycles skipped=%d (runs=%d)\n", v.checked, v.skipped, v.runs)
}

var errDone = errors.New("past to_tick")

// verifier re-plans every logged world and compares the schedules. A log
// entry with cycle 1 marks a planner restart.
type verifier struct {
	from, to uint64

	p       *planner.Planner
	runs    int
	checked int
	skipped int
}

func (v *verifier) check(e planner.LogEntry) error {
	if v.to != 0 && e.Tick > v.to {
		return errDone
	}
	if v.p == nil || e.Report.Cycle == 1 {
		tune := e.Tuning
		// Replayable entries finished inside the deadline; only the budget bounds them.
		tune.SearchTimeoutMs = 0
		v.p = planner.New(tune, nil)
		v.runs++
	}

	if !e.Replayable() {
		// Re-planning a deadline-cut cycle could send a schedule the live
		// planner never sent, so take the counter from the log instead.
		v.skipped++
		if e.Schedule != nil {
			v.p.SetSequence(e.Schedule.SequenceNr)
		}
		return nil
	}

	sched, rep, err := v.p.Plan(context.Background(), e.World)
	if e.Tick < v.from {
		v.skipped++
		return nil
	}
	v.checked++

	if (err != nil) != (e.Error != "") {
		return fmt.Errorf("tick %d: error mismatch: got=%v want=%q", e.Tick, err, e.Error)
	}
	if rep.Outcome != e.Report.Outcome {
		return fmt.Errorf("tick %d: outcome mismatch: got=%s want=%s", e.Tick, rep.Outcome, e.Report.Outcome)
	}
	if !sameSchedule(sched, e.Schedule) {
		return fmt.Errorf("tick %d: schedule mismatch: got=%s want=%s", e.Tick, describe(sched), describe(e.Schedule))
	}
	return nil
}

func sameSchedule(a, b *protocol.CraneSchedule) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.SequenceNr != b.SequenceNr || len(a.Moves) != len(b.Moves) {
		return false
	}
	for i := range a.Moves {
		if a.Moves[i] != b.Moves[i] {
			return false
		}
	}
	return true
}

func describe(s *protocol.CraneSchedule) string {
	if s == nil {
		return "none"
	}
	return fmt.Sprintf("seq=%d moves=%v", s.SequenceNr, s.Moves)
}
