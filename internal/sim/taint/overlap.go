package taint

import "taintcraft.ai/internal/sim/voxel"

// Agent is the view of a moving entity the rules need.
type Agent interface {
	Kind() AgentKind
	// TaintFriendly agents are immune to contamination and may feed on it.
	TaintFriendly() bool
}

type StatusKind uint8

const (
	StatusNone StatusKind = iota
	StatusFluxTaint
)

func (s StatusKind) String() string {
	if s == StatusFluxTaint {
		return "flux_taint"
	}
	return "none"
}

type StatusEffect struct {
	Kind          StatusKind
	DurationTicks int
	Amplifier     int
}

const fluxTaintTicks = 200

// OnAgentOverlap tells the host how an agent inside the contaminated cell at
// p is slowed and what status it should receive. It never mutates anything.
func OnAgentOverlap(_ voxel.Vec3i, cell voxel.Cell, a Agent) (velocityScale float32, effect StatusEffect) {
	if !cell.IsTaint() || a == nil || a.TaintFriendly() {
		return 1, StatusEffect{}
	}
	switch cell.Variant {
	case voxel.Goo:
		return 1 - float32(cell.Level+1)/16, StatusEffect{Kind: StatusFluxTaint, DurationTicks: fluxTaintTicks}
	case voxel.Fibre, voxel.Feature:
		return 1, StatusEffect{Kind: StatusFluxTaint, DurationTicks: fluxTaintTicks / 2}
	}
	return 1, StatusEffect{}
}
