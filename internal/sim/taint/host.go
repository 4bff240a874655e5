// Package taint implements the contamination rules: spreading from seeds,
// reverting once cut off, crust collapse and the goo fluid. It owns no
// goroutines; the host calls in once per cell per tick.
package taint

import "taintcraft.ai/internal/sim/voxel"

type UpdateFlags uint8

const (
	// UpdateNeighbors asks the host to notify the six neighbours so they can
	// recompute their shape.
	UpdateNeighbors UpdateFlags = 1 << iota
	// UpdateClients asks the host to publish the change to observers.
	UpdateClients

	UpdateAll = UpdateNeighbors | UpdateClients
)

// Cells is the host's cell storage. Every write for which Replaced holds
// must be followed by Controller.OnRemoved.
type Cells interface {
	Cell(p voxel.Vec3i) voxel.Cell
	SetCell(p voxel.Vec3i, c voxel.Cell, flags UpdateFlags)
	RemoveCell(p voxel.Vec3i)
}

type Classifier interface {
	Hardness(p voxel.Vec3i) float32
	Class(p voxel.Vec3i) voxel.Class
	Replaceable(p voxel.Vec3i) bool
	Occludes(p voxel.Vec3i) bool
	FaceSturdy(p voxel.Vec3i, face voxel.Dir) bool
	HasTag(p voxel.Vec3i, t voxel.Tag) bool
}

// Field is the flux aura sampled to speed up spreading and fed by
// evaporation.
type Field interface {
	Sample(p voxel.Vec3i) float32
	Drain(p voxel.Vec3i, amount float32)
	Pollute(p voxel.Vec3i, amount float32)
	Generate(p voxel.Vec3i, amount float32)
}

type AgentKind uint8

const (
	AgentPlayer AgentKind = iota + 1
	AgentSeed
	AgentSwarm
	AgentFallingMass
)

func (k AgentKind) String() string {
	switch k {
	case AgentPlayer:
		return "player"
	case AgentSeed:
		return "seed"
	case AgentSwarm:
		return "swarm"
	case AgentFallingMass:
		return "falling_mass"
	}
	return "unknown"
}

type SpawnRequest struct {
	Kind    AgentKind
	At      voxel.Vec3i
	Heading voxel.Dir

	// Falling masses carry the cell they were and where it came from.
	Cell   voxel.Cell
	Origin voxel.Vec3i
}

type Agents interface {
	Spawn(req SpawnRequest)
	AnyWithin(kind AgentKind, center voxel.Vec3i, radius int) bool
}

type Scheduler interface {
	ScheduleTick(p voxel.Vec3i, delayTicks int)
}

type EffectKind uint8

const (
	EffectConverted EffectKind = iota + 1
	EffectDied
	EffectFibreBreak
	EffectCollapse
	EffectEvaporate
	EffectSwarmSpawn
	EffectVent
	EffectGeyserGrow
	EffectFed
)

var effectNames = map[EffectKind]string{
	EffectConverted:  "CONVERTED",
	EffectDied:       "DIED",
	EffectFibreBreak: "FIBRE_BREAK",
	EffectCollapse:   "COLLAPSE",
	EffectEvaporate:  "EVAPORATE",
	EffectSwarmSpawn: "SWARM_SPAWN",
	EffectVent:       "VENT",
	EffectGeyserGrow: "GEYSER_GROW",
	EffectFed:        "FED",
}

func (k EffectKind) String() string {
	if s, ok := effectNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// Effect is a fire-and-forget notification for sounds, particles and logs.
type Effect struct {
	Kind EffectKind
	Pos  voxel.Vec3i
	From voxel.Cell
	To   voxel.Cell
}

type Effects interface {
	Emit(e Effect)
}

// Host is everything the rules need from the world they run in.
type Host interface {
	Cells
	Classifier
	Field
	Agents
	Scheduler
	Effects

	// Loaded reports whether p is in an actively simulated region.
	Loaded(p voxel.Vec3i) bool
	FloorY() int
}

// Rand is the per-tick random source; *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float32() float32
	IntN(n int) int
}
