package taint

import (
	"taintcraft.ai/internal/sim/taint/connect"
	"taintcraft.ai/internal/sim/voxel"
)

type World interface {
	Cells
	Classifier
}

// CanFallBelow reports whether a falling mass may enter q. A log anywhere in
// the 3x3x3 cube around q anchors the mass no matter what q holds.
func CanFallBelow(w World, q voxel.Vec3i) bool {
	c := w.Cell(q)
	class := w.Class(q)
	passable := c.IsEmpty() ||
		class == voxel.ClassFire ||
		class.Liquid() ||
		w.Replaceable(q) ||
		c.Is(voxel.Fibre) ||
		(c.Is(voxel.Goo) && int(c.Level) < voxel.MaxGooLevel)
	if !passable {
		return false
	}
	anchored := false
	q.Cube(1, func(n voxel.Vec3i) bool {
		if w.HasTag(n, voxel.TagLogs) {
			anchored = true
			return false
		}
		return true
	})
	return !anchored
}

// RestingPlace walks down from start while the mass can keep falling.
func RestingPlace(w World, start voxel.Vec3i, floorY int) voxel.Vec3i {
	pos := start
	for pos.Y-1 >= floorY && CanFallBelow(w, pos.Down()) {
		pos = pos.Down()
	}
	return pos
}

// TryCollapse drops the cell at origin, starting its fall at dropTarget
// (origin itself for a straight drop, a side cell for a slump).
func (c *Controller) TryCollapse(h Host, origin, dropTarget voxel.Vec3i) bool {
	if !connect.IsOnlyAdjacentToTaint(h, origin) {
		return false
	}
	if !CanFallBelow(h, dropTarget.Down()) {
		return false
	}
	if dropTarget.Y < h.FloorY() {
		return false
	}
	cell := h.Cell(origin)

	if h.Loaded(dropTarget) {
		h.RemoveCell(origin)
		h.Spawn(SpawnRequest{
			Kind:    AgentFallingMass,
			At:      dropTarget,
			Heading: voxel.Down,
			Cell:    cell,
			Origin:  origin,
		})
		h.Emit(Effect{Kind: EffectCollapse, Pos: origin, From: cell})
		return true
	}

	// Nobody simulates the destination: land the mass right away instead
	// of leaving a falling agent in an unloaded region.
	h.RemoveCell(origin)
	rest := RestingPlace(h, dropTarget, h.FloorY())
	h.SetCell(rest, cell, UpdateAll)
	h.Emit(Effect{Kind: EffectCollapse, Pos: origin, From: cell, To: cell})
	return true
}

const slumpColumn = 3

func (c *Controller) crustTick(h Host, p voxel.Vec3i, rng Rand) Outcome {
	if c.TryCollapse(h, p, p) {
		return OutcomeCollapsed
	}
	if !h.Cell(p.Up()).IsEmpty() {
		return OutcomeNone
	}
	d := voxel.Horizontal[rng.IntN(len(voxel.Horizontal))]
	side := p.Offset(d)
	// The side column must be open all the way down the slump.
	q := side
	for i := 0; i < slumpColumn; i++ {
		if !h.Cell(q).IsEmpty() {
			return OutcomeNone
		}
		q = q.Down()
	}
	q = p
	for i := 0; i < slumpColumn; i++ {
		q = q.Down()
		if !h.Cell(q).Is(voxel.Crust) {
			return OutcomeNone
		}
	}
	if c.TryCollapse(h, p, side) {
		return OutcomeCollapsed
	}
	return OutcomeNone
}
