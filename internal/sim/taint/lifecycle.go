package taint

import (
	"taintcraft.ai/internal/sim/taint/connect"
	"taintcraft.ai/internal/sim/taint/seeds"
	"taintcraft.ai/internal/sim/voxel"
)

type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeDied
	OutcomeSpread
	OutcomeCollapsed
	OutcomeSpawned
	OutcomeVented
	OutcomeUpgraded
	OutcomeFlowed
	OutcomeEvaporated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDied:
		return "died"
	case OutcomeSpread:
		return "spread"
	case OutcomeCollapsed:
		return "collapsed"
	case OutcomeSpawned:
		return "spawned"
	case OutcomeVented:
		return "vented"
	case OutcomeUpgraded:
		return "upgraded"
	case OutcomeFlowed:
		return "flowed"
	case OutcomeEvaporated:
		return "evaporated"
	}
	return "none"
}

// leafDecayRadius is how far a removed log reaches to wake up leaves.
const leafDecayRadius = 4

// Controller runs the per-variant lifecycle of contaminated cells in one
// region.
type Controller struct {
	cfg    Config
	seeds  *seeds.State
	engine *Engine
}

func NewController(cfg Config, st *seeds.State) *Controller {
	e := NewEngine(cfg, st)
	return &Controller{cfg: e.cfg, seeds: st, engine: e}
}

func (c *Controller) Engine() *Engine { return c.engine }

func (c *Controller) Seeds() *seeds.State { return c.seeds }

// TrySpread is the engine entry point, exposed for hosts and tools.
func (c *Controller) TrySpread(h Host, p voxel.Vec3i, rng Rand, forced bool) SpreadResult {
	return c.engine.TrySpread(h, p, rng, forced)
}

// RandomTick is the periodic hook for one contaminated cell.
func (c *Controller) RandomTick(h Host, p voxel.Vec3i, cell voxel.Cell, rng Rand) Outcome {
	if !cell.IsTaint() {
		return OutcomeNone
	}
	if cell.Variant == voxel.Goo {
		return c.gooTick(h, p, cell, rng)
	}
	if !c.seeds.IsNear(p) && rng.Float32() < c.cfg.DeathChance {
		c.Die(h, p, cell)
		return OutcomeDied
	}

	switch cell.Variant {
	case voxel.Rock:
		return spreadOutcome(c.engine.TrySpread(h, p, rng, false))
	case voxel.Crust:
		return c.crustTick(h, p, rng)
	case voxel.Geyser:
		return c.geyserTick(h, p, rng)
	case voxel.Feature:
		out := spreadOutcome(c.engine.TrySpread(h, p, rng, true))
		if rng.Float32() < c.cfg.FeatureGeyserChance {
			if below := h.Cell(p.Down()); below.Is(voxel.Log) && below.Axis == voxel.AxisY {
				h.SetCell(p, voxel.TaintGeyser(), UpdateAll)
				h.Emit(Effect{Kind: EffectGeyserGrow, Pos: p, From: cell, To: voxel.TaintGeyser()})
				return OutcomeUpgraded
			}
		}
		return out
	case voxel.Log:
		return spreadOutcome(c.engine.TrySpread(h, p, rng, true))
	}
	return OutcomeNone
}

func spreadOutcome(r SpreadResult) Outcome {
	if r.Converted {
		return OutcomeSpread
	}
	return OutcomeNone
}

func (c *Controller) geyserTick(h Host, p voxel.Vec3i, rng Rand) Outcome {
	r := c.cfg.GeyserPlayerRadius
	if rng.Float32() < c.cfg.GeyserSpawnChance &&
		h.AnyWithin(AgentPlayer, p, r) &&
		!h.AnyWithin(AgentSwarm, p, r) {
		h.Spawn(SpawnRequest{Kind: AgentSwarm, At: p, Heading: voxel.Up})
		h.Emit(Effect{Kind: EffectSwarmSpawn, Pos: p})
		return OutcomeSpawned
	}
	if h.Sample(p) < c.cfg.GeyserFieldCap {
		h.Generate(p, c.cfg.GeyserFieldGain)
		h.Emit(Effect{Kind: EffectVent, Pos: p})
		return OutcomeVented
	}
	return OutcomeNone
}

// Die reverts a contaminated cell. Hosts call it directly for forced
// deaths, e.g. when the cell is harvested.
func (c *Controller) Die(h Host, p voxel.Vec3i, cell voxel.Cell) {
	if !cell.IsTaint() {
		return
	}
	var to voxel.Cell
	switch cell.Variant {
	case voxel.Soil:
		to = voxel.Solid(c.cfg.Dirt)
		h.SetCell(p, to, UpdateAll)
	case voxel.Rock:
		to = voxel.Solid(c.cfg.PorousStone)
		h.SetCell(p, to, UpdateAll)
	case voxel.Crust, voxel.Geyser, voxel.Feature, voxel.Log:
		if c.cfg.GooEnabled {
			to = voxel.TaintGoo(NominalGooLevel(cell.Variant))
			h.SetCell(p, to, UpdateAll)
		} else {
			h.RemoveCell(p)
		}
	case voxel.Fibre:
		h.RemoveCell(p)
		h.Emit(Effect{Kind: EffectFibreBreak, Pos: p, From: cell})
	default:
		h.RemoveCell(p)
	}
	h.Emit(Effect{Kind: EffectDied, Pos: p, From: cell, To: to})
}

// Replaced reports whether writing now over old removes a contaminated cell:
// it stops being taint or becomes another variant.
func Replaced(old, now voxel.Cell) bool {
	return old.IsTaint() && (!now.IsTaint() || now.Variant != old.Variant)
}

// OnRemoved must be called by the host once for every write where Replaced
// holds, whatever the cause. Rules that revert cells rely on that and do not
// call it themselves. Removing a log wakes every leaf within reach so the
// host can re-run its decay check.
func (c *Controller) OnRemoved(h Host, p voxel.Vec3i, old voxel.Cell) {
	if !old.Is(voxel.Log) {
		return
	}
	p.Cube(leafDecayRadius, func(q voxel.Vec3i) bool {
		if q != p && h.HasTag(q, voxel.TagLeaves) {
			h.ScheduleTick(q, 1)
		}
		return true
	})
}

// NeighborChanged recomputes fibre connections at p. A fibre with nothing
// left to hold on to breaks.
func (c *Controller) NeighborChanged(h Host, p voxel.Vec3i) {
	cell := h.Cell(p)
	if !cell.Is(voxel.Fibre) {
		return
	}
	next := connect.Fibre(h, p)
	if next.Connections == 0 {
		h.RemoveCell(p)
		h.Emit(Effect{Kind: EffectFibreBreak, Pos: p, From: cell})
		return
	}
	if next != cell {
		h.SetCell(p, next, UpdateClients)
	}
}

type Drop struct {
	Item  string
	Count int
}

const CrystalItem = "TAINT_CRYSTAL"

// HarvestDrops rolls the items a harvested contaminated cell yields.
func (c *Controller) HarvestDrops(cell voxel.Cell, rng Rand) []Drop {
	switch {
	case cell.Is(voxel.Rock):
		if rng.Float32() < c.cfg.CrystalDropChance {
			return []Drop{{Item: CrystalItem, Count: 1}}
		}
	case cell.Is(voxel.Fibre) && cell.Crystal:
		return []Drop{{Item: CrystalItem, Count: 1}}
	}
	return nil
}
