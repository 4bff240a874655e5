package taint

import (
	"taintcraft.ai/internal/sim/taint/connect"
	"taintcraft.ai/internal/sim/taint/fluid"
	"taintcraft.ai/internal/sim/voxel"
)

// flow moves or merges the goo at p downwards and reports where the
// remaining fluid is, if anywhere.
func (c *Controller) flow(h Host, p voxel.Vec3i, cell voxel.Cell) (voxel.Vec3i, int, bool) {
	level := int(cell.Level)
	below := p.Down()
	if below.Y < h.FloorY() {
		return p, level, true
	}
	under := h.Cell(below)
	switch {
	case under.IsEmpty():
		h.RemoveCell(p)
		h.SetCell(below, cell, UpdateAll)
		return below, level, true
	case under.Is(voxel.Goo) && fluid.Partial(int(under.Level)):
		newBelow, rest, vacate := fluid.Merge(level, int(under.Level))
		h.SetCell(below, voxel.TaintGoo(newBelow), UpdateAll)
		if vacate {
			h.RemoveCell(p)
			return p, 0, false
		}
		h.SetCell(p, voxel.TaintGoo(rest), UpdateAll)
		return p, rest, true
	}
	return p, level, true
}

func (c *Controller) gooTick(h Host, p voxel.Vec3i, cell voxel.Cell, rng Rand) Outcome {
	evaporate := rng.Float32() < c.cfg.GooEvaporateChance
	pos, level, present := c.flow(h, p, cell)
	out := OutcomeFlowed
	if pos == p && present && level == int(cell.Level) {
		out = OutcomeNone
	}
	if !present || !evaporate {
		return out
	}
	here := voxel.TaintGoo(level)
	switch fluid.Evaporate(level, rng.IntN(2) == 0) {
	case fluid.Lower:
		next := voxel.TaintGoo(level - 1)
		h.SetCell(pos, next, UpdateAll)
		h.Pollute(pos, c.cfg.GooPollution)
		h.Emit(Effect{Kind: EffectEvaporate, Pos: pos, From: here, To: next})
	case fluid.Vanish:
		h.RemoveCell(pos)
		h.Pollute(pos, c.cfg.GooPollution)
		h.Emit(Effect{Kind: EffectEvaporate, Pos: pos, From: here})
	case fluid.Solidify:
		next := connect.Fibre(h, pos)
		h.SetCell(pos, next, UpdateAll)
		h.Emit(Effect{Kind: EffectConverted, Pos: pos, From: here, To: next})
	}
	return OutcomeEvaporated
}

// Feeder is an agent that grows by eating goo.
type Feeder interface {
	Agent
	Grow(units int)
}

// OnAgentContact lets a contamination-friendly agent touching a goo cell eat
// one level of it, half the time.
func (c *Controller) OnAgentContact(h Host, p voxel.Vec3i, cell voxel.Cell, a Agent, rng Rand) bool {
	if !cell.Is(voxel.Goo) || !a.TaintFriendly() {
		return false
	}
	f, ok := a.(Feeder)
	if !ok || rng.Float32() >= 0.5 {
		return false
	}
	if cell.Level == 0 {
		h.RemoveCell(p)
	} else {
		h.SetCell(p, voxel.TaintGoo(int(cell.Level)-1), UpdateAll)
	}
	f.Grow(1)
	h.Emit(Effect{Kind: EffectFed, Pos: p, From: cell})
	return true
}
