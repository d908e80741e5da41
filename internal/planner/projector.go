package planner

import (
	"dynstack.ai/internal/brp"
	"dynstack.ai/internal/protocol"
)

// Project copies the first moves of a solution into crane moves. It stops
// after maxMoves or at the first move into a handover that is not ready;
// later moves depend on earlier ones, so nothing past that point is sent.
func Project(w protocol.World, solution []brp.Move, maxMoves int) []protocol.CraneMove {
	var out []protocol.CraneMove
	for _, m := range solution {
		if len(out) >= maxMoves {
			break
		}
		if !w.Handover.Ready && m.Tgt == w.Handover.ID {
			break
		}
		out = append(out, protocol.CraneMove{BlockID: m.Block, SourceID: m.Src, TargetID: m.Tgt})
	}
	return out
}
