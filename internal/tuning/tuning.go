package tuning

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dynstack.ai/internal/brp"
	"dynstack.ai/internal/protocol"
)

// MaxScheduleMoves is the most moves the simulator accepts in one schedule.
const MaxScheduleMoves = 3

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	// Search. A larger budget can only shorten the solution, but a state
	// space bigger than the budget may silently yield no solution at all.
	SearchBudget    int `yaml:"search_budget" json:"search_budget"`
	SearchTimeoutMs int `yaml:"search_timeout_ms" json:"search_timeout_ms"` // 0 = no deadline

	// Projection.
	MaxMoves int `yaml:"max_moves" json:"max_moves"`

	// Priority given to blocks missing from the priority table.
	DefaultPriority int `yaml:"default_priority" json:"default_priority"`

	ExcludeArrivalTarget bool `yaml:"exclude_arrival_target" json:"exclude_arrival_target"`
	ReplanWhileBusy      bool `yaml:"replan_while_busy" json:"replan_while_busy"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: protocol.Version,
		SearchBudget:    brp.DefaultBudget,
		MaxMoves:        MaxScheduleMoves,
		DefaultPriority: 10000,
	}
}

// Load reads path over the defaults; keys missing from the file keep their
// default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("planner.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("planner.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var problems []string
	if t.ProtocolVersion != protocol.Version {
		problems = append(problems, fmt.Sprintf("protocol_version %q, want %q", t.ProtocolVersion, protocol.Version))
	}
	if t.SearchBudget <= 0 {
		problems = append(problems, "search_budget must be positive")
	}
	if t.SearchTimeoutMs < 0 {
		problems = append(problems, "search_timeout_ms must not be negative")
	}
	if t.MaxMoves < 1 || t.MaxMoves > MaxScheduleMoves {
		problems = append(problems, fmt.Sprintf("max_moves must be in 1..%d", MaxScheduleMoves))
	}
	if t.DefaultPriority < 1 {
		problems = append(problems, "default_priority must be at least 1")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func (t Tuning) SearchTimeout() time.Duration {
	return time.Duration(t.SearchTimeoutMs) * time.Millisecond
}
