package world

import (
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"sync/atomic"

	"taintcraft.ai/internal/persistence/snapshot"
	"taintcraft.ai/internal/sim/catalogs"
	"taintcraft.ai/internal/sim/taint"
	"taintcraft.ai/internal/sim/taint/seeds"
	"taintcraft.ai/internal/sim/voxel"
	"taintcraft.ai/internal/sim/world/terrain"
)

const defaultInfluenceRadius = 32

type World struct {
	taint.CatalogClassifier

	cfg  WorldConfig
	cats *catalogs.Catalogs
	log  *log.Logger

	store *ChunkStore
	aura  *Aura
	ctrl  *taint.Controller
	seeds *seeds.State

	pcg *rand.PCG
	rng *rand.Rand

	agents    map[string]*Agent
	seedAt    map[voxel.Vec3i]int
	nextAgent uint64
	active    map[columnKey]struct{}

	sched         *scheduler
	neighborQueue []voxel.Vec3i

	tick  atomic.Uint64
	stats atomic.Pointer[Stats]

	// Per-tick accumulators.
	events       []Event
	changed      int
	effectCounts map[taint.EffectKind]int
	counts       Counters

	sink         EventSink
	hub          *Hub
	snapshotSink chan<- snapshot.SnapshotV1

	cmds chan Command
	stop chan struct{}
}

// Counters are host-side running totals. Rule effects are counted by kind in
// EffectCounts.
type Counters struct {
	Fed     int
	Decayed int
	Landed  int
}

// Stats is a read-only summary published after every step, safe to read
// from other goroutines while the world runs.
type Stats struct {
	Tick         uint64         `json:"tick"`
	Taint        int            `json:"taint"`
	Agents       int            `json:"agents"`
	Seeds        int            `json:"seeds"`
	LoadedChunks int            `json:"loaded_chunks"`
	Scheduled    int            `json:"scheduled"`
	Digest       string         `json:"digest"`
	Effects      map[string]int `json:"effects"`
	Counters     Counters       `json:"counters"`
}

// New builds a world. st is the seed state of this world's region; pass nil
// to use a private one.
func New(cfg WorldConfig, cats *catalogs.Catalogs, rules taint.Config, st *seeds.State) (*World, error) {
	cfg.normalize()
	if cfg.ID == "" {
		return nil, fmt.Errorf("world id must not be empty")
	}
	m := func(id string) (voxel.Material, error) {
		v, ok := cats.Materials.ID(id)
		if !ok {
			return 0, fmt.Errorf("missing material id in palette: %s", id)
		}
		return v, nil
	}
	var pal terrain.Palette
	for _, r := range []struct {
		dst *voxel.Material
		id  string
	}{
		{&pal.Bedrock, "BEDROCK"},
		{&pal.Stone, "STONE"},
		{&pal.Dirt, "DIRT"},
		{&pal.Grass, "GRASS"},
		{&pal.Sand, "SAND"},
		{&pal.Water, "WATER"},
		{&pal.Log, "OAK_LOG"},
		{&pal.Leaves, "OAK_LEAVES"},
	} {
		v, err := m(r.id)
		if err != nil {
			return nil, err
		}
		*r.dst = v
	}
	if st == nil {
		st = seeds.NewState(cfg.ID, defaultInfluenceRadius)
	}

	gen := terrain.New(terrain.DefaultParams(cfg.Seed, cfg.FloorY), pal)
	pcg := rand.NewPCG(uint64(cfg.Seed), 0)
	w := &World{
		cfg:          cfg,
		cats:         cats,
		log:          log.New(io.Discard, "", 0),
		store:        NewChunkStore(gen, cfg.FloorY),
		aura:         NewAura(cfg.AuraBase),
		ctrl:         taint.NewController(rules, st),
		seeds:        st,
		pcg:          pcg,
		rng:          rand.New(pcg),
		agents:       map[string]*Agent{},
		seedAt:       map[voxel.Vec3i]int{},
		nextAgent:    1,
		active:       map[columnKey]struct{}{},
		sched:        newScheduler(),
		effectCounts: map[taint.EffectKind]int{},
		hub:          NewHub(),
		cmds:         make(chan Command, 256),
		stop:         make(chan struct{}),
	}
	w.CatalogClassifier = taint.CatalogClassifier{Cells: w, Materials: &cats.Materials}
	if cfg.SeedLiveness {
		st.SetLiveness(w)
	}
	for _, p := range cfg.InitialSeeds {
		w.newAgent(taint.AgentSeed, voxel.FromArray(p))
	}
	for _, p := range cfg.InitialPlayers {
		w.newAgent(taint.AgentPlayer, voxel.FromArray(p))
	}
	w.publishStats("")
	return w, nil
}

func (w *World) SetLogger(l *log.Logger) {
	if l != nil {
		w.log = l
	}
}

// SetEventSink must be called before Run.
func (w *World) SetEventSink(s EventSink) { w.sink = s }

// SetSnapshotSink receives periodic snapshots from Run. Sends never block;
// a full channel drops the snapshot.
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig           { return w.cfg }
func (w *World) Catalogs() *catalogs.Catalogs  { return w.cats }
func (w *World) Controller() *taint.Controller { return w.ctrl }
func (w *World) Seeds() *seeds.State           { return w.seeds }
func (w *World) Hub() *Hub                     { return w.hub }
func (w *World) CurrentTick() uint64           { return w.tick.Load() }
func (w *World) Counters() Counters            { return w.counts }
func (w *World) TaintCount() int               { return w.store.TaintCount() }
func (w *World) LoadedChunks() int             { return len(w.store.chunks) }
func (w *World) MaterialPalette() []string     { return append([]string(nil), w.cats.Materials.Palette...) }
func (w *World) ScheduledTicks() int           { return w.sched.Len() }
func (w *World) ChunkStore() *ChunkStore       { return w.store }

// EffectCounts returns running totals of emitted effects by name.
func (w *World) EffectCounts() map[string]int {
	out := make(map[string]int, len(w.effectCounts))
	for k, v := range w.effectCounts {
		out[k.String()] = v
	}
	return out
}

// LastStats returns the summary published by the latest step.
func (w *World) LastStats() Stats { return *w.stats.Load() }

func (w *World) publishStats(digest string) {
	w.stats.Store(&Stats{
		Tick:         w.tick.Load(),
		Taint:        w.store.TaintCount(),
		Agents:       len(w.agents),
		Seeds:        w.seeds.Len(),
		LoadedChunks: len(w.store.chunks),
		Scheduled:    w.sched.Len(),
		Digest:       digest,
		Effects:      w.EffectCounts(),
		Counters:     w.counts,
	})
}

type AgentView struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Pos         [3]int  `json:"pos"`
	Size        int     `json:"size,omitempty"`
	Speed       float32 `json:"speed"`
	Status      string  `json:"status,omitempty"`
	StatusTicks int     `json:"status_ticks,omitempty"`
}

func viewOf(a *Agent) AgentView {
	v := AgentView{
		ID:    a.ID,
		Kind:  a.kind.String(),
		Pos:   a.Pos.ToArray(),
		Size:  a.Size,
		Speed: a.Speed,
	}
	if a.Status.Kind != taint.StatusNone {
		v.Status = a.Status.Kind.String()
		v.StatusTicks = a.Status.DurationTicks
	}
	return v
}

func (w *World) Agent(id string) (AgentView, bool) {
	a := w.agents[id]
	if a == nil {
		return AgentView{}, false
	}
	return viewOf(a), true
}

// Agents lists every agent ordered by id.
func (w *World) Agents() []AgentView {
	ids := w.sortedAgentIDs()
	out := make([]AgentView, 0, len(ids))
	for _, id := range ids {
		out = append(out, viewOf(w.agents[id]))
	}
	return out
}

// The methods below mutate the world directly. Use them from tests and
// tools that drive the world through StepOnce; a running world takes the
// same operations through Submit.

func (w *World) AddPlayer(p voxel.Vec3i) string { return w.newAgent(taint.AgentPlayer, p).ID }

func (w *World) AddSeed(p voxel.Vec3i) string { return w.newAgent(taint.AgentSeed, p).ID }

func (w *World) RemoveAgent(id string) bool { return w.removeAgent(id) }

func (w *World) MoveAgent(id string, p voxel.Vec3i) bool {
	a := w.agents[id]
	if a == nil || a.kind == taint.AgentSeed {
		return false
	}
	a.Pos = p
	return true
}

// Place sets a cell as a player or tool would.
func (w *World) Place(p voxel.Vec3i, c voxel.Cell) {
	w.SetCell(p, c, taint.UpdateAll)
	w.drainNeighbors()
}

// ForceSpread runs a forced spread attempt from p.
func (w *World) ForceSpread(p voxel.Vec3i) taint.SpreadResult {
	res := w.ctrl.TrySpread(w, p, w.rng, true)
	w.drainNeighbors()
	return res
}

// Harvest breaks the contaminated cell at p and returns its drops. It
// reports false when p is not contaminated.
func (w *World) Harvest(p voxel.Vec3i) ([]taint.Drop, bool) {
	c := w.Cell(p)
	if !c.IsTaint() {
		return nil, false
	}
	drops := w.ctrl.HarvestDrops(c, w.rng)
	w.RemoveCell(p)
	w.drainNeighbors()
	return drops, true
}
