package protocol

// World is the hot-storage snapshot sent by the simulator. Times are
// milliseconds of simulated time.
type World struct {
	NowMs      int64    `json:"now_ms"`
	Production Stack    `json:"production"`
	Buffers    []Stack  `json:"buffers"`
	Handover   Handover `json:"handover"`
	Crane      Crane    `json:"crane"`
}

type Block struct {
	ID        int   `json:"id"`
	ReleaseMs int64 `json:"release_ms"`
	DueMs     int64 `json:"due_ms"`
	Ready     bool  `json:"ready"`
}

type Stack struct {
	ID          int     `json:"id"`
	MaxHeight   int     `json:"max_height"`
	BottomToTop []Block `json:"bottom_to_top"`
}

// Handover is the exit point. It holds at most one block and accepts a new
// one only while Ready.
type Handover struct {
	ID    int    `json:"id"`
	Ready bool   `json:"ready"`
	Block *Block `json:"block,omitempty"`
}

type Crane struct {
	ID         int           `json:"id"`
	LocationID int           `json:"location_id"`
	Load       *Block        `json:"load,omitempty"`
	Schedule   CraneSchedule `json:"schedule"`
}

type CraneMove struct {
	BlockID  int `json:"block_id"`
	SourceID int `json:"source_id"`
	TargetID int `json:"target_id"`
}

// CraneSchedule is what the crane executes. The simulator only accepts
// schedules whose SequenceNr increases.
type CraneSchedule struct {
	SequenceNr uint64      `json:"sequence_nr"`
	Moves      []CraneMove `json:"moves"`
}
