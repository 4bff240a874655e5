package world

import (
	"fmt"

	"taintcraft.ai/internal/persistence/snapshot"
	"taintcraft.ai/internal/sim/catalogs"
	"taintcraft.ai/internal/sim/taint"
	"taintcraft.ai/internal/sim/taint/seeds"
	"taintcraft.ai/internal/sim/voxel"
)

// ExportSnapshot captures the world between ticks. Header.Tick is the next
// tick the world will run.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header:            snapshot.Header{Version: snapshot.Version, WorldID: w.cfg.ID, Tick: w.tick.Load()},
		Seed:              w.cfg.Seed,
		TickRate:          w.cfg.TickRateHz,
		FloorY:            w.cfg.FloorY,
		RandomTickSpeed:   w.cfg.RandomTickSpeed,
		SimDistanceChunks: w.cfg.SimDistanceChunks,
		AuraBase:          w.cfg.AuraBase,
		Palette:           append([]string(nil), w.cats.Materials.Palette...),
		PaletteDigest:     w.cats.Materials.PaletteDigest,
		Counters: snapshot.CountersV1{
			NextAgent: w.nextAgent,
			NextSched: w.sched.nextSeq,
			Fed:       w.counts.Fed,
			Decayed:   w.counts.Decayed,
			Landed:    w.counts.Landed,
			Effects:   w.EffectCounts(),
		},
	}
	if st, err := w.pcg.MarshalBinary(); err == nil {
		s.RNG = st
	}
	for _, k := range w.store.LoadedChunkKeys() {
		c, _ := w.store.Loaded(k)
		s.Chunks = append(s.Chunks, snapshot.ChunkV1{CX: k.CX, CY: k.CY, CZ: k.CZ, Cells: c.Packed()})
	}
	for _, e := range w.aura.sorted() {
		s.Aura = append(s.Aura, snapshot.AuraV1{CX: e.key.CX, CZ: e.key.CZ, Flux: e.flux})
	}
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		av := snapshot.AgentV1{
			ID:      a.ID,
			Kind:    a.kind.String(),
			Pos:     a.Pos.ToArray(),
			Heading: int(a.Heading),
			Cell:    a.Payload.Pack(),
			Origin:  a.Origin.ToArray(),
			Size:    a.Size,
			Age:     a.Age,
			Speed:   a.Speed,
		}
		if a.Status.Kind != taint.StatusNone {
			av.Status = a.Status.Kind.String()
			av.StatusTicks = a.Status.DurationTicks
		}
		s.Agents = append(s.Agents, av)
	}
	for _, e := range w.sched.entries() {
		s.Scheduled = append(s.Scheduled, snapshot.ScheduledV1{Tick: e.Tick, Seq: e.Seq, Pos: e.Pos.ToArray()})
	}
	return s
}

// NewFromSnapshot rebuilds a world from s. The world parameters come from the
// snapshot; cfg supplies the rest (initial agents in cfg are ignored).
func NewFromSnapshot(s snapshot.SnapshotV1, cfg WorldConfig, cats *catalogs.Catalogs, rules taint.Config, st *seeds.State) (*World, error) {
	cfg.ID = s.Header.WorldID
	cfg.Seed = s.Seed
	cfg.TickRateHz = s.TickRate
	cfg.FloorY = s.FloorY
	cfg.RandomTickSpeed = s.RandomTickSpeed
	cfg.SimDistanceChunks = s.SimDistanceChunks
	cfg.AuraBase = s.AuraBase
	cfg.InitialSeeds = nil
	cfg.InitialPlayers = nil
	w, err := New(cfg, cats, rules, st)
	if err != nil {
		return nil, err
	}
	if err := w.ImportSnapshot(s); err != nil {
		return nil, err
	}
	return w, nil
}

// ImportSnapshot replaces the world state with s. The world must not be
// running.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}
	if s.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("snapshot world %q does not match %q", s.Header.WorldID, w.cfg.ID)
	}
	if s.PaletteDigest != w.cats.Materials.PaletteDigest {
		return fmt.Errorf("snapshot palette digest mismatch")
	}
	if s.Seed != w.cfg.Seed || s.FloorY != w.cfg.FloorY {
		return fmt.Errorf("snapshot seed/floor (%d,%d) do not match world (%d,%d)", s.Seed, s.FloorY, w.cfg.Seed, w.cfg.FloorY)
	}

	chunks := make(map[ChunkKey][]voxel.Cell, len(s.Chunks))
	for _, ch := range s.Chunks {
		if len(ch.Cells) != chunkCells {
			return fmt.Errorf("chunk %d,%d,%d: %d cells", ch.CX, ch.CY, ch.CZ, len(ch.Cells))
		}
		cells := make([]voxel.Cell, chunkCells)
		for i, v := range ch.Cells {
			c, err := voxel.UnpackCell(v)
			if err != nil {
				return fmt.Errorf("chunk %d,%d,%d: %w", ch.CX, ch.CY, ch.CZ, err)
			}
			if c.Kind == voxel.KindSolid && int(c.Material) >= len(w.cats.Materials.Palette) {
				return fmt.Errorf("chunk %d,%d,%d: material %d out of palette", ch.CX, ch.CY, ch.CZ, c.Material)
			}
			cells[i] = c
		}
		chunks[ChunkKey{CX: ch.CX, CY: ch.CY, CZ: ch.CZ}] = cells
	}
	agents := make([]*Agent, 0, len(s.Agents))
	for _, av := range s.Agents {
		kind, ok := kindFromString(av.Kind)
		if !ok {
			return fmt.Errorf("agent %s: unknown kind %q", av.ID, av.Kind)
		}
		payload, err := voxel.UnpackCell(av.Cell)
		if err != nil {
			return fmt.Errorf("agent %s: %w", av.ID, err)
		}
		a := &Agent{
			ID:      av.ID,
			kind:    kind,
			Pos:     voxel.FromArray(av.Pos),
			Heading: voxel.Dir(av.Heading),
			Payload: payload,
			Origin:  voxel.FromArray(av.Origin),
			Size:    av.Size,
			Age:     av.Age,
			Speed:   av.Speed,
		}
		if av.Status == taint.StatusFluxTaint.String() {
			a.Status = taint.StatusEffect{Kind: taint.StatusFluxTaint, DurationTicks: av.StatusTicks}
		}
		agents = append(agents, a)
	}

	w.store.chunks = map[ChunkKey]*Chunk{}
	for k, cells := range chunks {
		w.store.importChunk(k, cells)
	}
	w.aura.flux = map[columnKey]float32{}
	for _, e := range s.Aura {
		w.aura.flux[columnKey{CX: e.CX, CZ: e.CZ}] = e.Flux
	}

	w.seeds.Clear()
	w.agents = map[string]*Agent{}
	w.seedAt = map[voxel.Vec3i]int{}
	for _, a := range agents {
		w.agents[a.ID] = a
		if a.kind == taint.AgentSeed {
			w.seedAt[a.Pos]++
			w.seeds.Register(a.Pos)
		}
	}

	entries := make([]scheduled, 0, len(s.Scheduled))
	for _, e := range s.Scheduled {
		entries = append(entries, scheduled{Tick: e.Tick, Seq: e.Seq, Pos: voxel.FromArray(e.Pos)})
	}
	w.sched.restore(entries, s.Counters.NextSched)

	w.nextAgent = s.Counters.NextAgent
	w.counts = Counters{Fed: s.Counters.Fed, Decayed: s.Counters.Decayed, Landed: s.Counters.Landed}
	w.effectCounts = map[taint.EffectKind]int{}
	for k := taint.EffectConverted; k <= taint.EffectFed; k++ {
		if n := s.Counters.Effects[k.String()]; n > 0 {
			w.effectCounts[k] = n
		}
	}
	if len(s.RNG) > 0 {
		if err := w.pcg.UnmarshalBinary(s.RNG); err != nil {
			return fmt.Errorf("rng state: %w", err)
		}
	}
	w.events = nil
	w.neighborQueue = w.neighborQueue[:0]
	w.tick.Store(s.Header.Tick)
	w.publishStats("")
	return nil
}
