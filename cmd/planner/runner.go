package main

import (
	"context"
	"log"
	"time"

	"dynstack.ai/internal/metrics"
	"dynstack.ai/internal/persistence/indexdb"
	"dynstack.ai/internal/planner"
	"dynstack.ai/internal/protocol"
)

type planLog interface {
	Write(planner.LogEntry) error
}

type cycleIndex interface {
	WriteCycle(planner.LogEntry) error
	Stats() indexdb.Stats
}

// runner plans one tick and records the cycle everywhere it is kept.
type runner struct {
	planner *planner.Planner
	log     *log.Logger
	metrics *metrics.Metrics

	plans planLog
	index cycleIndex
}

func (r *runner) handle(ctx context.Context, tick uint64, w protocol.World) (*protocol.CraneSchedule, error) {
	sched, rep, err := r.planner.Plan(ctx, w)

	entry := planner.LogEntry{
		Tick:     tick,
		Time:     time.Now().UTC().Format(time.RFC3339Nano),
		Tuning:   r.planner.Tuning(),
		World:    w,
		Report:   rep,
		Schedule: sched,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if r.plans != nil {
		if werr := r.plans.Write(entry); werr != nil {
			r.log.Printf("tick=%d: plan log: %v", tick, werr)
		}
	}
	if r.index != nil {
		werr := r.index.WriteCycle(entry)
		st := r.index.Stats()
		if werr != nil {
			r.log.Printf("tick=%d: index: %v (%d dropped so far)", tick, werr, st.DropCycleTotal)
		}
		r.metrics.SetIndex(st.DropCycleTotal, st.QueueDepth)
	}

	n := 0
	if sched != nil {
		n = len(sched.Moves)
	}
	r.metrics.Observe(rep, n, err)
	return sched, err
}
