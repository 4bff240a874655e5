package taint

import (
	"testing"

	"taintcraft.ai/internal/sim/voxel"
)

func TestGooFallsIntoEmptySpace(t *testing.T) {
	w := newFakeWorld(t)
	c := newController(w, 8)
	p := voxel.Vec3i{Y: 5}
	w.put(p, voxel.TaintGoo(5))

	out := c.RandomTick(w, p, w.Cell(p), &scriptRand{floats: []float32{0.9}})
	if out != OutcomeFlowed {
		t.Fatalf("got %s", out)
	}
	if !w.Cell(p).IsEmpty() || w.Cell(p.Down()) != voxel.TaintGoo(5) {
		t.Fatalf("goo did not move down")
	}
}

func TestGooMergesIntoPartialCell(t *testing.T) {
	w := newFakeWorld(t)
	c := newController(w, 8)
	p := voxel.Vec3i{Y: 5}
	w.put(p, voxel.TaintGoo(5))
	w.put(p.Down(), voxel.TaintGoo(2))

	c.RandomTick(w, p, w.Cell(p), &scriptRand{floats: []float32{0.9}})
	if w.Cell(p.Down()) != voxel.TaintGoo(7) || w.Cell(p) != voxel.TaintGoo(1) {
		t.Fatalf("merge 5 onto 2: below=%s here=%s", w.Cell(p.Down()), w.Cell(p))
	}

	w.put(p, voxel.TaintGoo(1))
	w.put(p.Down(), voxel.TaintGoo(2))
	c.RandomTick(w, p, w.Cell(p), &scriptRand{floats: []float32{0.9}})
	if !w.Cell(p).IsEmpty() || w.Cell(p.Down()) != voxel.TaintGoo(5) {
		t.Fatalf("merge 1 onto 2: below=%s here=%s", w.Cell(p.Down()), w.Cell(p))
	}

	// Full goo below is a floor.
	w.put(p, voxel.TaintGoo(3))
	w.put(p.Down(), voxel.TaintGoo(7))
	if out := c.RandomTick(w, p, w.Cell(p), &scriptRand{floats: []float32{0.9}}); out != OutcomeNone {
		t.Fatalf("goo above a full cell should rest, got %s", out)
	}
}

func TestGooEvaporation(t *testing.T) {
	p := voxel.Vec3i{Y: 1}
	setup := func(level int) (*fakeWorld, *Controller) {
		w := newFakeWorld(t)
		w.put(p.Down(), w.mat("STONE"))
		w.put(p, voxel.TaintGoo(level))
		return w, newController(w, 8)
	}

	w, c := setup(3)
	out := c.RandomTick(w, p, w.Cell(p), &scriptRand{floats: []float32{0.1}, ints: []int{1}})
	if out != OutcomeEvaporated || w.Cell(p) != voxel.TaintGoo(2) || w.polluted != 1 {
		t.Fatalf("level 3: %s cell=%s polluted=%v", out, w.Cell(p), w.polluted)
	}

	w, c = setup(0)
	c.RandomTick(w, p, w.Cell(p), &scriptRand{floats: []float32{0.1}, ints: []int{0}})
	if !w.Cell(p).IsEmpty() || w.polluted != 1 {
		t.Fatalf("level 0 heads: cell=%s polluted=%v", w.Cell(p), w.polluted)
	}

	w, c = setup(0)
	c.RandomTick(w, p, w.Cell(p), &scriptRand{floats: []float32{0.1}, ints: []int{1}})
	if got := w.Cell(p); !got.Is(voxel.Fibre) || got.Connections != voxel.Down.Bit() || w.polluted != 0 {
		t.Fatalf("level 0 tails: cell=%s polluted=%v", got, w.polluted)
	}
}

func TestGooRestsOnFloor(t *testing.T) {
	w := newFakeWorld(t)
	w.floor = 0
	c := newController(w, 8)
	p := voxel.Vec3i{Y: 0}
	w.put(p, voxel.TaintGoo(4))
	if out := c.RandomTick(w, p, w.Cell(p), &scriptRand{floats: []float32{0.9}}); out != OutcomeNone {
		t.Fatalf("goo on the floor moved: %s", out)
	}
}

func TestOnAgentContactFeeding(t *testing.T) {
	w := newFakeWorld(t)
	c := newController(w, 8)
	p := voxel.Vec3i{Y: 2}
	w.put(p, voxel.TaintGoo(3))

	swarm := &stubAgent{kind: AgentSwarm, friendly: true}
	if !c.OnAgentContact(w, p, w.Cell(p), swarm, &scriptRand{floats: []float32{0.4}}) {
		t.Fatalf("expected feeding")
	}
	if w.Cell(p) != voxel.TaintGoo(2) || swarm.grown != 1 {
		t.Fatalf("cell=%s grown=%d", w.Cell(p), swarm.grown)
	}
	if c.OnAgentContact(w, p, w.Cell(p), swarm, &scriptRand{floats: []float32{0.6}}) {
		t.Fatalf("failed roll should not feed")
	}

	w.put(p, voxel.TaintGoo(0))
	c.OnAgentContact(w, p, w.Cell(p), swarm, &scriptRand{floats: []float32{0}})
	if !w.Cell(p).IsEmpty() {
		t.Fatalf("last level eaten, got %s", w.Cell(p))
	}

	w.put(p, voxel.TaintGoo(3))
	if c.OnAgentContact(w, p, w.Cell(p), &stubAgent{kind: AgentPlayer}, &scriptRand{}) {
		t.Fatalf("players do not eat goo")
	}
}
