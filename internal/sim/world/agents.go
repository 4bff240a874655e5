package world

import (
	"fmt"
	"sort"

	"taintcraft.ai/internal/sim/taint"
	"taintcraft.ai/internal/sim/voxel"
)

// Swarms dissolve after this many ticks.
const swarmLifetimeTicks = 2400

type Agent struct {
	ID      string
	kind    taint.AgentKind
	Pos     voxel.Vec3i
	Heading voxel.Dir

	// Falling mass payload and the cell it fell from.
	Payload voxel.Cell
	Origin  voxel.Vec3i

	Size   int // swarm size, grows by feeding
	Age    int
	Speed  float32
	Status taint.StatusEffect
}

func (a *Agent) Kind() taint.AgentKind { return a.kind }

func (a *Agent) TaintFriendly() bool { return a.kind == taint.AgentSwarm }

func (a *Agent) Grow(units int) { a.Size += units }

var agentPrefix = map[taint.AgentKind]string{
	taint.AgentPlayer:      "P",
	taint.AgentSeed:        "S",
	taint.AgentSwarm:       "W",
	taint.AgentFallingMass: "F",
}

func kindFromString(s string) (taint.AgentKind, bool) {
	for k := range agentPrefix {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

func (w *World) newAgent(kind taint.AgentKind, pos voxel.Vec3i) *Agent {
	n := w.nextAgent
	w.nextAgent++
	a := &Agent{
		ID:      fmt.Sprintf("%s%06d", agentPrefix[kind], n),
		kind:    kind,
		Pos:     pos,
		Heading: voxel.Up,
		Speed:   1,
	}
	if kind == taint.AgentSwarm {
		a.Size = 1
	}
	w.agents[a.ID] = a
	if kind == taint.AgentSeed {
		w.seedAt[pos]++
		w.seeds.Register(pos)
	}
	return a
}

func (w *World) removeAgent(id string) bool {
	a := w.agents[id]
	if a == nil {
		return false
	}
	delete(w.agents, id)
	if a.kind == taint.AgentSeed {
		w.seedAt[a.Pos]--
		if w.seedAt[a.Pos] <= 0 {
			delete(w.seedAt, a.Pos)
			w.seeds.Unregister(a.Pos)
		}
	}
	return true
}

// SeedAlive lets the seed registry drop coordinates whose seed agent is gone.
// It is only consulted from the world loop.
func (w *World) SeedAlive(region string, p voxel.Vec3i) bool {
	if region != w.cfg.ID {
		return true
	}
	return w.seedAt[p] > 0
}

func (w *World) sortedAgentIDs() []string {
	ids := make([]string, 0, len(w.agents))
	for id := range w.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Spawn implements taint.Agents.
func (w *World) Spawn(req taint.SpawnRequest) {
	a := w.newAgent(req.Kind, req.At)
	a.Heading = req.Heading
	a.Payload = req.Cell
	a.Origin = req.Origin
	w.emit(Event{Kind: "SPAWN", Pos: req.At.ToArray(), Agent: a.ID, To: req.Kind.String()})
}

// AnyWithin implements taint.Agents.
func (w *World) AnyWithin(kind taint.AgentKind, center voxel.Vec3i, radius int) bool {
	r2 := int64(radius) * int64(radius)
	for _, a := range w.agents {
		if a.kind == kind && a.Pos.DistSq(center) <= r2 {
			return true
		}
	}
	return false
}

func (w *World) stepAgents() {
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		if a == nil {
			continue
		}
		a.Age++
		switch a.kind {
		case taint.AgentPlayer:
			w.stepPlayer(a)
		case taint.AgentSeed:
			w.stepSeed(a)
		case taint.AgentSwarm:
			w.stepSwarm(a)
		case taint.AgentFallingMass:
			w.stepFalling(a)
		}
	}
}

func (w *World) stepPlayer(a *Agent) {
	scale, eff := taint.OnAgentOverlap(a.Pos, w.Cell(a.Pos), a)
	a.Speed = scale
	switch {
	case eff.Kind != taint.StatusNone:
		if eff.DurationTicks > a.Status.DurationTicks || a.Status.Kind != eff.Kind {
			a.Status = eff
		}
	case a.Status.DurationTicks > 0:
		a.Status.DurationTicks--
		if a.Status.DurationTicks == 0 {
			a.Status = taint.StatusEffect{}
		}
	}
}

// stepSeed forces a spread attempt near the seed every pulse interval.
func (w *World) stepSeed(a *Agent) {
	if a.Age%w.cfg.SeedPulseEveryTicks != 0 {
		return
	}
	r := w.cfg.SeedPulseReach
	at := a.Pos.Add(voxel.Vec3i{
		X: w.rng.IntN(2*r+1) - r,
		Y: w.rng.IntN(2*r+1) - r,
		Z: w.rng.IntN(2*r+1) - r,
	})
	if at.Y < w.cfg.FloorY {
		return
	}
	w.ctrl.TrySpread(w, at, w.rng, true)
}

func (w *World) passable(p voxel.Vec3i) bool {
	c := w.Cell(p)
	return c.IsEmpty() || c.Is(voxel.Goo) || c.Is(voxel.Fibre) || w.Replaceable(p)
}

func (w *World) stepSwarm(a *Agent) {
	if a.Age > swarmLifetimeTicks {
		w.removeAgent(a.ID)
		w.emit(Event{Kind: "DESPAWN", Pos: a.Pos.ToArray(), Agent: a.ID})
		return
	}
	next := a.Pos
	if below := a.Pos.Down(); below.Y >= w.cfg.FloorY && w.passable(below) && !w.Cell(a.Pos).Is(voxel.Goo) {
		next = below
	} else {
		d := voxel.Horizontal[w.rng.IntN(len(voxel.Horizontal))]
		if q := a.Pos.Offset(d); w.passable(q) {
			next = q
			a.Heading = d
		}
	}
	a.Pos = next
	if c := w.Cell(a.Pos); c.Is(voxel.Goo) {
		if w.ctrl.OnAgentContact(w, a.Pos, c, a, w.rng) {
			w.counts.Fed++
		}
	}
}

func (w *World) stepFalling(a *Agent) {
	next := a.Pos.Down()
	if next.Y >= w.cfg.FloorY && taint.CanFallBelow(w, next) {
		a.Pos = next
		return
	}
	w.removeAgent(a.ID)
	w.counts.Landed++
	w.SetCell(a.Pos, a.Payload, taint.UpdateAll)
	w.emit(Event{Kind: "LAND", Pos: a.Pos.ToArray(), Agent: a.ID, To: w.describe(a.Payload)})
}
