package planner

import (
	"dynstack.ai/internal/protocol"
	"dynstack.ai/internal/tuning"
)

// LogEntry is one planning cycle as written to the plan log. It carries
// everything needed to re-run the cycle.
type LogEntry struct {
	Tick     uint64                  `json:"tick"`
	Time     string                  `json:"time"`
	Tuning   tuning.Tuning           `json:"tuning"`
	World    protocol.World          `json:"world"`
	Report   Report                  `json:"report"`
	Schedule *protocol.CraneSchedule `json:"schedule,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// Replayable reports whether re-running the cycle must give the same
// schedule. Deadline-cut searches depend on wall-clock time.
func (e LogEntry) Replayable() bool {
	return !e.Report.Canceled
}
