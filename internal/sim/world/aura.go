package world

import (
	"sort"

	"taintcraft.ai/internal/sim/voxel"
	"taintcraft.ai/internal/sim/world/terrain"
)

type columnKey struct{ CX, CZ int }

func columnOf(p voxel.Vec3i) columnKey {
	return columnKey{CX: terrain.FloorDiv(p.X, chunkSize), CZ: terrain.FloorDiv(p.Z, chunkSize)}
}

// Aura is the flux level of each chunk column. Columns never touched read
// as the base level.
type Aura struct {
	base float32
	flux map[columnKey]float32
}

func NewAura(base float32) *Aura {
	return &Aura{base: base, flux: map[columnKey]float32{}}
}

func (a *Aura) Sample(p voxel.Vec3i) float32 {
	if v, ok := a.flux[columnOf(p)]; ok {
		return v
	}
	return a.base
}

func (a *Aura) add(p voxel.Vec3i, d float32) {
	v := a.Sample(p) + d
	if v < 0 {
		v = 0
	}
	a.flux[columnOf(p)] = v
}

func (a *Aura) Drain(p voxel.Vec3i, amount float32)    { a.add(p, -amount) }
func (a *Aura) Pollute(p voxel.Vec3i, amount float32)  { a.add(p, amount) }
func (a *Aura) Generate(p voxel.Vec3i, amount float32) { a.add(p, amount) }

type auraEntry struct {
	key  columnKey
	flux float32
}

func (a *Aura) sorted() []auraEntry {
	out := make([]auraEntry, 0, len(a.flux))
	for k, v := range a.flux {
		out = append(out, auraEntry{key: k, flux: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.CX != out[j].key.CX {
			return out[i].key.CX < out[j].key.CX
		}
		return out[i].key.CZ < out[j].key.CZ
	})
	return out
}
