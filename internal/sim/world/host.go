package world

import (
	"taintcraft.ai/internal/sim/taint"
	"taintcraft.ai/internal/sim/voxel"
)

// The world is the taint.Host of its own region.
var _ taint.Host = (*World)(nil)

func (w *World) Cell(p voxel.Vec3i) voxel.Cell { return w.store.Get(p) }

func (w *World) SetCell(p voxel.Vec3i, c voxel.Cell, flags taint.UpdateFlags) {
	old, changed := w.store.Set(p, c)
	if !changed {
		return
	}
	w.afterChange(p, old, c, flags)
}

func (w *World) RemoveCell(p voxel.Vec3i) {
	old, changed := w.store.Set(p, voxel.Empty())
	if !changed {
		return
	}
	w.afterChange(p, old, voxel.Empty(), taint.UpdateAll)
}

func (w *World) afterChange(p voxel.Vec3i, old, now voxel.Cell, flags taint.UpdateFlags) {
	if taint.Replaced(old, now) {
		w.ctrl.OnRemoved(w, p, old)
	}
	if old.Kind == voxel.KindSolid && now.Kind != voxel.KindSolid &&
		w.cats.Materials.Props(old.Material).Tags.Has(voxel.TagLogs) {
		w.wakeLeaves(p)
	}
	if flags&taint.UpdateNeighbors != 0 {
		for _, d := range voxel.Dirs {
			w.neighborQueue = append(w.neighborQueue, p.Offset(d))
		}
	}
	if flags&taint.UpdateClients != 0 {
		w.changed++
	}
}

// drainNeighbors runs NeighborChanged for queued positions until the queue
// settles. Fibre breaks can cascade along a strand, so the queue may grow
// while it is drained.
func (w *World) drainNeighbors() {
	for i := 0; i < len(w.neighborQueue); i++ {
		w.ctrl.NeighborChanged(w, w.neighborQueue[i])
	}
	w.neighborQueue = w.neighborQueue[:0]
}

func (w *World) Sample(p voxel.Vec3i) float32      { return w.aura.Sample(p) }
func (w *World) Drain(p voxel.Vec3i, a float32)    { w.aura.Drain(p, a) }
func (w *World) Pollute(p voxel.Vec3i, a float32)  { w.aura.Pollute(p, a) }
func (w *World) Generate(p voxel.Vec3i, a float32) { w.aura.Generate(p, a) }
func (w *World) FloorY() int                       { return w.cfg.FloorY }
func (w *World) ScheduleTick(p voxel.Vec3i, delay int) {
	if delay < 1 {
		delay = 1
	}
	w.sched.add(p, w.tick.Load()+uint64(delay))
}

func (w *World) Emit(e taint.Effect) {
	w.effectCounts[e.Kind]++
	w.emit(Event{Kind: e.Kind.String(), Pos: e.Pos.ToArray(), From: w.describe(e.From), To: w.describe(e.To)})
}

// Loaded reports whether p is within simulation distance of a player or a
// seed agent.
func (w *World) Loaded(p voxel.Vec3i) bool {
	_, ok := w.active[columnOf(p)]
	return ok
}

func (w *World) describe(c voxel.Cell) string {
	switch c.Kind {
	case voxel.KindEmpty:
		return ""
	case voxel.KindSolid:
		return w.cats.Materials.Name(c.Material)
	}
	return c.String()
}

func (w *World) emit(e Event) {
	e.Tick = w.tick.Load()
	e.World = w.cfg.ID
	w.events = append(w.events, e)
}
