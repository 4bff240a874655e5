package taint

import (
	"math/rand/v2"
	"testing"

	"taintcraft.ai/internal/sim/voxel"
)

func TestRandomTickDeathRateAwayFromSeeds(t *testing.T) {
	w := newFakeWorld(t)
	c := newController(w, 8, voxel.Vec3i{X: 1000})
	rng := rand.New(rand.NewPCG(7, 0))

	const cells = 1000
	p := voxel.Vec3i{Y: 1}
	total := 0
	for i := 0; i < cells; i++ {
		w.put(p, voxel.TaintRock())
		ticks := 0
		for w.Cell(p).Is(voxel.Rock) {
			ticks++
			if ticks > 500 {
				t.Fatalf("cell %d survived %d ticks", i, ticks)
			}
			c.RandomTick(w, p, w.Cell(p), rng)
		}
		total += ticks
	}
	// Geometric with p=0.1: mean 10, stddev of the mean ~0.3.
	mean := float64(total) / cells
	if mean < 8.5 || mean > 11.5 {
		t.Fatalf("mean ticks to death %.2f, want ~10", mean)
	}
}

func TestRandomTickNearSeedNeverDies(t *testing.T) {
	w := newFakeWorld(t)
	c := newController(w, 8, voxel.Vec3i{})
	p := voxel.Vec3i{Y: 1}
	w.put(p, voxel.TaintCrust())
	w.put(p.Down(), w.mat("STONE"))
	for i := 0; i < 100; i++ {
		if out := c.RandomTick(w, p, w.Cell(p), &scriptRand{}); out == OutcomeDied {
			t.Fatalf("crust next to a seed died on tick %d", i)
		}
	}
	if !w.Cell(p).Is(voxel.Crust) {
		t.Fatalf("crust changed: %s", w.Cell(p))
	}
}

func TestDieTransitions(t *testing.T) {
	w := newFakeWorld(t)
	c := newController(w, 8)
	cases := []struct {
		from voxel.Cell
		want voxel.Cell
	}{
		{voxel.TaintSoil(), w.mat("DIRT")},
		{voxel.TaintRock(), w.mat("POROUS_STONE")},
		{voxel.TaintCrust(), voxel.TaintGoo(7)},
		{voxel.TaintGeyser(), voxel.TaintGoo(7)},
		{voxel.TaintFeature(voxel.Up), voxel.TaintGoo(3)},
		{voxel.TaintLog(voxel.AxisY), voxel.TaintGoo(7)},
		{voxel.TaintFibre(voxel.Down.Bit(), false), voxel.Empty()},
	}
	p := voxel.Vec3i{Y: 3}
	for _, tc := range cases {
		w.put(p, tc.from)
		c.Die(w, p, tc.from)
		if got := w.Cell(p); got != tc.want {
			t.Fatalf("Die(%s) left %s, want %s", tc.from, got, tc.want)
		}
	}
	if n := w.countEffects(EffectDied); n != len(cases) {
		t.Fatalf("died effects: got %d want %d", n, len(cases))
	}
	if n := w.countEffects(EffectFibreBreak); n != 1 {
		t.Fatalf("fibre break effects: got %d want 1", n)
	}
}

func TestDieWithoutGooRemovesCell(t *testing.T) {
	w := newFakeWorld(t)
	cfg := DefaultConfig(w.cats)
	cfg.GooEnabled = false
	c := newControllerWith(w, cfg)
	p := voxel.Vec3i{Y: 3}
	w.put(p, voxel.TaintCrust())
	c.Die(w, p, voxel.TaintCrust())
	if !w.Cell(p).IsEmpty() {
		t.Fatalf("expected removal, got %s", w.Cell(p))
	}
}

func TestLogRemovalWakesLeaves(t *testing.T) {
	w := newFakeWorld(t)
	c := newController(w, 8)
	p := voxel.Vec3i{Y: 5}
	near := voxel.Vec3i{X: 2, Y: 7}
	far := voxel.Vec3i{X: 5, Y: 5}
	w.put(p, voxel.TaintLog(voxel.AxisY))
	w.put(near, w.mat("OAK_LEAVES"))
	w.put(far, w.mat("OAK_LEAVES"))

	w.ctrl = c

	c.Die(w, p, w.Cell(p))
	if !w.Cell(p).Is(voxel.Goo) {
		t.Fatalf("log should leave goo, got %s", w.Cell(p))
	}
	if len(w.scheduled) != 1 || w.scheduled[0] != near {
		t.Fatalf("scheduled %v, want only %v", w.scheduled, near)
	}
}

func TestLogDeathWithoutGooWakesLeavesOnce(t *testing.T) {
	w := newFakeWorld(t)
	cfg := DefaultConfig(w.cats)
	cfg.GooEnabled = false
	c := newControllerWith(w, cfg)
	w.ctrl = c
	p := voxel.Vec3i{Y: 5}
	leaf := voxel.Vec3i{X: 1, Y: 6}
	w.put(p, voxel.TaintLog(voxel.AxisY))
	w.put(leaf, w.mat("OAK_LEAVES"))

	c.Die(w, p, w.Cell(p))
	if !w.Cell(p).IsEmpty() {
		t.Fatalf("expected removal, got %s", w.Cell(p))
	}
	if len(w.scheduled) != 1 || w.scheduled[0] != leaf {
		t.Fatalf("scheduled %v, want %v exactly once", w.scheduled, leaf)
	}
}

func TestReplaced(t *testing.T) {
	cases := []struct {
		old, now voxel.Cell
		want     bool
	}{
		{voxel.TaintLog(voxel.AxisY), voxel.Empty(), true},
		{voxel.TaintLog(voxel.AxisY), voxel.TaintGoo(7), true},
		{voxel.TaintRock(), voxel.Solid(1), true},
		{voxel.TaintFibre(voxel.Down.Bit(), false), voxel.TaintFibre(voxel.Up.Bit(), false), false},
		{voxel.TaintGoo(7), voxel.TaintGoo(3), false},
		{voxel.Empty(), voxel.TaintRock(), false},
	}
	for _, tc := range cases {
		if got := Replaced(tc.old, tc.now); got != tc.want {
			t.Fatalf("Replaced(%s, %s) = %v, want %v", tc.old, tc.now, got, tc.want)
		}
	}
}

// TestSurvivorSpreads covers the survival branches: rock spreads only when
// the roll passes the flux-scaled chance, a log spreads regardless of it.
func TestSurvivorSpreads(t *testing.T) {
	p := voxel.Vec3i{Y: 1}
	east := voxel.Vec3i{X: 1}
	target := p.Add(east)

	setup := func(t *testing.T, cell voxel.Cell) (*fakeWorld, *Controller, float32) {
		w := newFakeWorld(t)
		// Powers of two keep the chance exact however it is computed.
		w.flux = 0.25
		cfg := DefaultConfig(w.cats)
		cfg.BaseRate = 50
		c := newControllerWith(w, cfg, p)
		w.put(p, cell)
		w.put(p.Down(), w.mat("STONE"))
		w.put(target.Down(), w.mat("STONE"))
		return w, c, c.Engine().Chance(w, p)
	}

	cases := []struct {
		name  string
		cell  voxel.Cell
		roll  func(chance float32) float32
		wantS bool
	}{
		{"rock at chance", voxel.TaintRock(), func(ch float32) float32 { return ch }, true},
		{"rock under chance", voxel.TaintRock(), func(ch float32) float32 { return ch / 2 }, true},
		{"rock over chance", voxel.TaintRock(), func(ch float32) float32 { return ch + 0.01 }, false},
		{"log ignores roll", voxel.TaintLog(voxel.AxisY), func(float32) float32 { return 0.99 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, c, chance := setup(t, tc.cell)
			if chance <= 0 || chance >= 0.9 {
				t.Fatalf("chance %v out of range for the test", chance)
			}
			rng := &scriptRand{floats: []float32{tc.roll(chance)}, ints: []int{pick(t, east)}, defFloat: 0.99}
			out := c.RandomTick(w, p, w.Cell(p), rng)
			if got := out == OutcomeSpread; got != tc.wantS {
				t.Fatalf("outcome %s, want spread=%v", out, tc.wantS)
			}
			if got := w.Cell(target).Is(voxel.Fibre); got != tc.wantS {
				t.Fatalf("target %s, want converted=%v", w.Cell(target), tc.wantS)
			}
			if !w.Cell(p).Is(tc.cell.Variant) {
				t.Fatalf("survivor changed: %s", w.Cell(p))
			}
		})
	}
}

func TestGeyserTick(t *testing.T) {
	p := voxel.Vec3i{Y: 10}

	w := newFakeWorld(t)
	c := newController(w, 8, p)
	w.put(p, voxel.TaintGeyser())
	w.players = []voxel.Vec3i{{X: 20, Y: 10}}
	if out := c.RandomTick(w, p, w.Cell(p), &scriptRand{floats: []float32{0.1}}); out != OutcomeSpawned {
		t.Fatalf("expected swarm spawn, got %s", out)
	}
	if len(w.spawned) != 1 || w.spawned[0].Kind != AgentSwarm || w.spawned[0].At != p {
		t.Fatalf("spawned %+v", w.spawned)
	}

	// A swarm already nearby suppresses spawning; the geyser vents instead.
	w.swarms = []voxel.Vec3i{{X: 3, Y: 10}}
	if out := c.RandomTick(w, p, w.Cell(p), &scriptRand{floats: []float32{0.1}}); out != OutcomeVented {
		t.Fatalf("expected vent, got %s", out)
	}
	if w.generated != 0.25 {
		t.Fatalf("generated %v want 0.25", w.generated)
	}

	w.flux = 3
	if out := c.RandomTick(w, p, w.Cell(p), &scriptRand{floats: []float32{0.9}}); out != OutcomeNone {
		t.Fatalf("saturated field should not vent, got %s", out)
	}
}

func TestFeatureUpgradesOnUprightLog(t *testing.T) {
	w := newFakeWorld(t)
	p := voxel.Vec3i{Y: 1}
	c := newController(w, 8, p)
	w.put(p, voxel.TaintFeature(voxel.Up))
	w.put(p.Down(), voxel.TaintLog(voxel.AxisY))

	out := c.RandomTick(w, p, w.Cell(p), &scriptRand{floats: []float32{0}})
	if out != OutcomeUpgraded || !w.Cell(p).Is(voxel.Geyser) {
		t.Fatalf("expected geyser, got %s / %s", out, w.Cell(p))
	}

	w.put(p, voxel.TaintFeature(voxel.Up))
	w.put(p.Down(), voxel.TaintLog(voxel.AxisX))
	c.RandomTick(w, p, w.Cell(p), &scriptRand{floats: []float32{0}})
	if !w.Cell(p).Is(voxel.Feature) {
		t.Fatalf("a sideways log must not feed a geyser, got %s", w.Cell(p))
	}
}

func TestNeighborChangedBreaksLooseFibre(t *testing.T) {
	w := newFakeWorld(t)
	c := newController(w, 8)
	p := voxel.Vec3i{Y: 1}
	w.put(p.Down(), w.mat("STONE"))
	w.put(p, voxel.TaintFibre(voxel.Down.Bit()|voxel.West.Bit(), false))

	c.NeighborChanged(w, p)
	if got := w.Cell(p); got.Connections != voxel.Down.Bit() {
		t.Fatalf("stale connections not refreshed: %06b", got.Connections)
	}

	w.RemoveCell(p.Down())
	c.NeighborChanged(w, p)
	if !w.Cell(p).IsEmpty() || w.countEffects(EffectFibreBreak) != 1 {
		t.Fatalf("unsupported fibre should break, got %s", w.Cell(p))
	}
}

func TestHarvestDrops(t *testing.T) {
	w := newFakeWorld(t)
	c := newController(w, 8)
	if d := c.HarvestDrops(voxel.TaintRock(), &scriptRand{floats: []float32{0.1}}); len(d) != 1 || d[0].Item != CrystalItem {
		t.Fatalf("rock roll under 13%% should drop a crystal, got %v", d)
	}
	if d := c.HarvestDrops(voxel.TaintRock(), &scriptRand{floats: []float32{0.5}}); d != nil {
		t.Fatalf("unexpected drop %v", d)
	}
	if d := c.HarvestDrops(voxel.TaintFibre(voxel.Down.Bit(), true), &scriptRand{}); len(d) != 1 {
		t.Fatalf("crystal fibre always drops, got %v", d)
	}
	if d := c.HarvestDrops(voxel.TaintFibre(voxel.Down.Bit(), false), &scriptRand{}); d != nil {
		t.Fatalf("plain fibre drops nothing, got %v", d)
	}
}

func TestOnAgentOverlap(t *testing.T) {
	player := stubAgent{kind: AgentPlayer}
	scale, eff := OnAgentOverlap(voxel.Vec3i{}, voxel.TaintGoo(7), player)
	if scale != 0.5 || eff.Kind != StatusFluxTaint || eff.DurationTicks != 200 {
		t.Fatalf("full goo: %v %+v", scale, eff)
	}
	scale, _ = OnAgentOverlap(voxel.Vec3i{}, voxel.TaintGoo(0), player)
	if scale != 1-1.0/16 {
		t.Fatalf("thin goo scale %v", scale)
	}
	if _, eff := OnAgentOverlap(voxel.Vec3i{}, voxel.TaintFibre(0, false), player); eff.DurationTicks != 100 {
		t.Fatalf("fibre effect %+v", eff)
	}
	if scale, eff := OnAgentOverlap(voxel.Vec3i{}, voxel.TaintGoo(7), stubAgent{kind: AgentSwarm, friendly: true}); scale != 1 || eff.Kind != StatusNone {
		t.Fatalf("friendly agents are unaffected: %v %+v", scale, eff)
	}
	if _, eff := OnAgentOverlap(voxel.Vec3i{}, voxel.TaintRock(), player); eff.Kind != StatusNone {
		t.Fatalf("rock applies nothing: %+v", eff)
	}
}

type stubAgent struct {
	kind     AgentKind
	friendly bool
	grown    int
}

func (a stubAgent) Kind() AgentKind     { return a.kind }
func (a stubAgent) TaintFriendly() bool { return a.friendly }
func (a *stubAgent) Grow(units int)     { a.grown += units }
