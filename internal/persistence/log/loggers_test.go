package log

import (
	"path/filepath"
	"testing"
	"time"

	"dynstack.ai/internal/planner"
	"dynstack.ai/internal/protocol"
	"dynstack.ai/internal/tuning"
)

func TestPlanLogger_RoundTripAcrossHours(t *testing.T) {
	dir := t.TempDir()
	l := NewPlanLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.clock = func() time.Time { return clock }

	entries := []planner.LogEntry{
		{Tick: 1, Tuning: tuning.Defaults(), Report: planner.Report{Cycle: 1, Outcome: planner.PhaseSolved}},
		{Tick: 2, Report: planner.Report{Cycle: 2, Outcome: planner.PhaseSkipped}},
		{
			Tick:     3,
			Report:   planner.Report{Cycle: 3, Outcome: planner.PhaseSolved},
			Schedule: &protocol.CraneSchedule{SequenceNr: 1, Moves: []protocol.CraneMove{{BlockID: 4, SourceID: 1, TargetID: 9}}},
		},
	}
	for i, e := range entries {
		if i == 2 {
			clock = clock.Add(2 * time.Minute)
		}
		if err := l.Write(e); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := PlanFiles(PlanDir(dir))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v want 2", files)
	}
	if filepath.Base(files[0]) != "plans-2026-03-01-10.jsonl.zst" {
		t.Fatalf("first file=%s", files[0])
	}

	var got []planner.LogEntry
	for _, f := range files {
		if err := ReadPlans(f, func(e planner.LogEntry) error {
			got = append(got, e)
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(got) != 3 {
		t.Fatalf("read %d entries want 3", len(got))
	}
	if got[0].Tuning.SearchBudget != tuning.Defaults().SearchBudget || got[1].Report.Outcome != planner.PhaseSkipped {
		t.Fatalf("entries=%+v", got)
	}
	if got[2].Schedule == nil || got[2].Schedule.Moves[0].BlockID != 4 {
		t.Fatalf("schedule lost: %+v", got[2])
	}
}

func TestPlanLogger_AppendsToExistingHour(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for tick := uint64(1); tick <= 2; tick++ {
		l := NewPlanLogger(dir)
		l.w.clock = func() time.Time { return clock }
		if err := l.Write(planner.LogEntry{Tick: tick}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	files, _ := PlanFiles(PlanDir(dir))
	if len(files) != 1 {
		t.Fatalf("files=%v want 1", files)
	}
	var ticks []uint64
	if err := ReadPlans(files[0], func(e planner.LogEntry) error {
		ticks = append(ticks, e.Tick)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(ticks) != 2 || ticks[0] != 1 || ticks[1] != 2 {
		t.Fatalf("ticks=%v", ticks)
	}
}

func TestReadPlans_ReportsBadLine(t *testing.T) {
	dir := t.TempDir()
	w := NewHourlyWriter(dir, "plans")
	if err := w.Append("not an entry"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()

	files, _ := PlanFiles(dir)
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
	if err := ReadPlans(files[0], func(planner.LogEntry) error { return nil }); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestHourlyWriter_ReopensAfterClose(t *testing.T) {
	dir := t.TempDir()
	w := NewHourlyWriter(dir, "plans")
	w.clock = func() time.Time { return time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC) }

	if err := w.Close(); err != nil {
		t.Fatalf("close before any write: %v", err)
	}
	for tick := uint64(1); tick <= 2; tick++ {
		if err := w.Append(planner.LogEntry{Tick: tick}); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	files, _ := PlanFiles(dir)
	if len(files) != 1 {
		t.Fatalf("files=%v want 1", files)
	}
	n := 0
	if err := ReadPlans(files[0], func(planner.LogEntry) error { n++; return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 2 {
		t.Fatalf("read %d entries want 2", n)
	}
}
