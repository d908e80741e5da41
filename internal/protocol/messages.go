package protocol

// HELLO (planner -> simulator)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlannerName     string `json:"planner_name"`
	SimID           string `json:"sim_id"`
}

// WORLD (simulator -> planner): one snapshot per tick.
type WorldMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	World           World  `json:"world"`
}

// SCHEDULE (planner -> simulator)
type ScheduleMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Tick            uint64        `json:"tick"`
	Schedule        CraneSchedule `json:"schedule"`
}

// ERROR (simulator -> planner)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
	Tick            uint64 `json:"tick,omitempty"`
}
