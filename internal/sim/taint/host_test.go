package taint

import (
	"testing"

	"taintcraft.ai/internal/sim/catalogs"
	"taintcraft.ai/internal/sim/taint/seeds"
	"taintcraft.ai/internal/sim/voxel"
)

// fakeWorld is an in-memory Host for rule tests.
type fakeWorld struct {
	CatalogClassifier

	t     *testing.T
	cats  *catalogs.Catalogs
	cells map[voxel.Vec3i]voxel.Cell

	flux      float32
	drained   float32
	polluted  float32
	generated float32

	players []voxel.Vec3i
	swarms  []voxel.Vec3i
	spawned []SpawnRequest

	scheduled []voxel.Vec3i
	effects   []Effect

	unloaded bool
	floor    int

	// ctrl, when set, is notified of reverted taint cells like a real host.
	ctrl *Controller
}

func newFakeWorld(t *testing.T) *fakeWorld {
	t.Helper()
	w := &fakeWorld{
		t:     t,
		cats:  catalogs.Default(),
		cells: map[voxel.Vec3i]voxel.Cell{},
		floor: -64,
	}
	w.CatalogClassifier = CatalogClassifier{Cells: w, Materials: &w.cats.Materials}
	return w
}

func (w *fakeWorld) mat(name string) voxel.Cell {
	return voxel.Solid(w.cats.Materials.MustID(name))
}

func (w *fakeWorld) put(p voxel.Vec3i, c voxel.Cell) { w.cells[p] = c }

func (w *fakeWorld) Cell(p voxel.Vec3i) voxel.Cell { return w.cells[p] }

func (w *fakeWorld) SetCell(p voxel.Vec3i, c voxel.Cell, _ UpdateFlags) {
	old := w.cells[p]
	if c.IsEmpty() {
		delete(w.cells, p)
	} else {
		w.cells[p] = c
	}
	if w.ctrl != nil && Replaced(old, c) {
		w.ctrl.OnRemoved(w, p, old)
	}
}

func (w *fakeWorld) RemoveCell(p voxel.Vec3i) { w.SetCell(p, voxel.Empty(), UpdateAll) }

func (w *fakeWorld) Sample(voxel.Vec3i) float32        { return w.flux }
func (w *fakeWorld) Drain(_ voxel.Vec3i, a float32)    { w.drained += a }
func (w *fakeWorld) Pollute(_ voxel.Vec3i, a float32)  { w.polluted += a }
func (w *fakeWorld) Generate(_ voxel.Vec3i, a float32) { w.generated += a }
func (w *fakeWorld) ScheduleTick(p voxel.Vec3i, _ int) { w.scheduled = append(w.scheduled, p) }
func (w *fakeWorld) Emit(e Effect)                     { w.effects = append(w.effects, e) }
func (w *fakeWorld) Loaded(voxel.Vec3i) bool           { return !w.unloaded }
func (w *fakeWorld) FloorY() int                       { return w.floor }
func (w *fakeWorld) Spawn(req SpawnRequest)            { w.spawned = append(w.spawned, req) }

func (w *fakeWorld) AnyWithin(kind AgentKind, center voxel.Vec3i, radius int) bool {
	var list []voxel.Vec3i
	switch kind {
	case AgentPlayer:
		list = w.players
	case AgentSwarm:
		list = w.swarms
	}
	r2 := int64(radius) * int64(radius)
	for _, p := range list {
		if p.DistSq(center) <= r2 {
			return true
		}
	}
	return false
}

func (w *fakeWorld) countEffects(k EffectKind) int {
	n := 0
	for _, e := range w.effects {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// scriptRand replays fixed values, then falls back to fixed defaults.
type scriptRand struct {
	floats []float32
	ints   []int

	defFloat float32
	defInt   int
}

func (r *scriptRand) Float32() float32 {
	if len(r.floats) == 0 {
		return r.defFloat
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptRand) IntN(n int) int {
	v := r.defInt
	if len(r.ints) > 0 {
		v = r.ints[0]
		r.ints = r.ints[1:]
	}
	return v % n
}

// pick returns the IntN value that makes TrySpread choose p+off.
func pick(t *testing.T, off voxel.Vec3i) int {
	t.Helper()
	for i := 0; i < 26; i++ {
		if (voxel.Vec3i{}).CubeNeighbor(i) == off {
			return i
		}
	}
	t.Fatalf("offset %v is not a cube neighbor", off)
	return 0
}

func newController(w *fakeWorld, radius int, seedsAt ...voxel.Vec3i) *Controller {
	st := seeds.NewState("test", radius)
	for _, s := range seedsAt {
		st.Register(s)
	}
	return NewController(DefaultConfig(w.cats), st)
}

func newControllerWith(w *fakeWorld, cfg Config, seedsAt ...voxel.Vec3i) *Controller {
	st := seeds.NewState("test", 32)
	for _, s := range seedsAt {
		st.Register(s)
	}
	return NewController(cfg, st)
}
