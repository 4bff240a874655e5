// Package worldtest drives worlds through their exported API only, so
// scenario tests read the same way a server or a replay tool would.
package worldtest

import (
	"testing"

	"taintcraft.ai/internal/sim/catalogs"
	"taintcraft.ai/internal/sim/taint"
	"taintcraft.ai/internal/sim/voxel"
	world "taintcraft.ai/internal/sim/world"
)

type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	Entries []world.TickLogEntry
}

// DefaultConfig is a small world with a stone-free sky above y=20 and a
// fast random tick so scenarios finish in a few hundred ticks.
func DefaultConfig(id string) world.WorldConfig {
	return world.WorldConfig{
		ID:                id,
		Seed:              42,
		TickRateHz:        20,
		FloorY:            0,
		RandomTickSpeed:   4096,
		SimDistanceChunks: 2,
		AuraBase:          0.1,
	}
}

func NewHarness(t *testing.T, cfg world.WorldConfig) *Harness {
	t.Helper()
	cats := catalogs.Default()
	w, err := world.New(cfg, cats, taint.DefaultConfig(cats), nil)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w, cats)
}

// NewHarnessWithWorld wraps an existing world, e.g. one rebuilt from a
// snapshot.
func NewHarnessWithWorld(t *testing.T, w *world.World, cats *catalogs.Catalogs) *Harness {
	t.Helper()
	h := &Harness{T: t, Cats: cats, W: w}
	w.SetEventSink(h)
	return h
}

func (h *Harness) WriteTick(e world.TickLogEntry) error {
	h.Entries = append(h.Entries, e)
	return nil
}

// Step runs one tick and returns its digest.
func (h *Harness) Step() string {
	_, d := h.W.StepOnce()
	return d
}

func (h *Harness) StepN(n int) string {
	var d string
	for i := 0; i < n; i++ {
		d = h.Step()
	}
	return d
}

// Count is the number of recorded events of the given type.
func (h *Harness) Count(kind string) int {
	n := 0
	for _, e := range h.Entries {
		for _, ev := range e.Events {
			if ev.Kind == kind {
				n++
			}
		}
	}
	return n
}

func (h *Harness) Material(id string) voxel.Cell {
	h.T.Helper()
	m, ok := h.Cats.Materials.ID(id)
	if !ok {
		h.T.Fatalf("unknown material %s", id)
	}
	return voxel.Solid(m)
}

// Platform fills a (2r+1)x(2r+1) square of stone at y with c above its
// centre.
func (h *Harness) Platform(center voxel.Vec3i, r int, c voxel.Cell) {
	stone := h.Material("STONE")
	for dz := -r; dz <= r; dz++ {
		for dx := -r; dx <= r; dx++ {
			h.W.Place(voxel.Vec3i{X: center.X + dx, Y: center.Y, Z: center.Z + dz}, stone)
		}
	}
	h.W.Place(center.Up(), c)
}
