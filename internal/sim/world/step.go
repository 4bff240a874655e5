package world

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"time"

	"taintcraft.ai/internal/sim/taint"
	"taintcraft.ai/internal/sim/voxel"
)

// Leaves further than this from any log decay.
const leafSupportRadius = 4

// StepOnce advances the world by one tick and returns the tick that ran and
// the state digest after it.
func (w *World) StepOnce() (uint64, string) {
	tick := w.tick.Load()

	w.recomputeActive()

	for _, p := range w.sched.due(tick) {
		w.scheduledTick(p)
		w.drainNeighbors()
	}

	w.randomTicks()

	w.stepAgents()
	w.drainNeighbors()

	if w.cfg.SeedLiveness && tick%uint64(w.cfg.RevalidateEveryTicks) == 0 {
		if n := w.seeds.Revalidate(); n > 0 {
			w.log.Printf("tick %d: pruned %d stale seeds", tick, n)
		}
	}

	digest := w.stateDigest(tick)
	entry := TickLogEntry{
		Tick:   tick,
		World:  w.cfg.ID,
		Digest: digest,
		Taint:  w.store.TaintCount(),
		Agents: len(w.agents),
		Events: w.events,
	}
	if w.sink != nil {
		if err := w.sink.WriteTick(entry); err != nil {
			w.log.Printf("tick %d: event sink: %v", tick, err)
		}
	}
	w.hub.publish(entry)
	w.events = nil
	w.changed = 0

	w.tick.Store(tick + 1)
	w.publishStats(digest)
	return tick, digest
}

// recomputeActive marks every chunk column within simulation distance of a
// player or a seed agent.
func (w *World) recomputeActive() {
	clear(w.active)
	r := w.cfg.SimDistanceChunks
	for _, a := range w.agents {
		if a.kind != taint.AgentPlayer && a.kind != taint.AgentSeed {
			continue
		}
		c := columnOf(a.Pos)
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				w.active[columnKey{CX: c.CX + dx, CZ: c.CZ + dz}] = struct{}{}
			}
		}
	}
}

func (w *World) randomTicks() {
	if w.cfg.RandomTickSpeed <= 0 {
		return
	}
	// Ticks may load new chunks; only the ones present at the start run.
	for _, k := range w.store.LoadedChunkKeys() {
		if _, ok := w.active[columnKey{CX: k.CX, CZ: k.CZ}]; !ok {
			continue
		}
		c, _ := w.store.Loaded(k)
		if c == nil || c.taint == 0 {
			continue
		}
		for i := 0; i < w.cfg.RandomTickSpeed; i++ {
			idx := w.rng.IntN(len(c.Cells))
			cell := c.Cells[idx]
			if !cell.IsTaint() {
				continue
			}
			w.ctrl.RandomTick(w, c.local(idx), cell, w.rng)
			w.drainNeighbors()
		}
	}
}

// scheduledTick runs a delayed update. The only kind today is the leaf decay
// check woken by a removed log.
func (w *World) scheduledTick(p voxel.Vec3i) {
	c := w.Cell(p)
	if c.Kind != voxel.KindSolid || !w.HasTag(p, voxel.TagLeaves) {
		return
	}
	supported := false
	p.Cube(leafSupportRadius, func(q voxel.Vec3i) bool {
		if w.HasTag(q, voxel.TagLogs) {
			supported = true
			return false
		}
		return true
	})
	if supported {
		return
	}
	w.RemoveCell(p)
	w.counts.Decayed++
	w.emit(Event{Kind: "LEAF_DECAY", Pos: p.ToArray(), From: w.describe(c)})
}

func (w *World) wakeLeaves(p voxel.Vec3i) {
	p.Cube(leafSupportRadius, func(q voxel.Vec3i) bool {
		if q != p && w.HasTag(q, voxel.TagLeaves) {
			w.ScheduleTick(q, 1)
		}
		return true
	})
}

// stateDigest hashes everything that influences future ticks.
func (w *World) stateDigest(tick uint64) string {
	h := sha256.New()
	writeU64(h, tick)
	writeU64(h, uint64(w.cfg.Seed))
	for _, k := range w.store.LoadedChunkKeys() {
		c, _ := w.store.Loaded(k)
		writeI64(h, int64(k.CX))
		writeI64(h, int64(k.CY))
		writeI64(h, int64(k.CZ))
		d := c.Digest()
		h.Write(d[:])
	}
	for _, e := range w.aura.sorted() {
		writeI64(h, int64(e.key.CX))
		writeI64(h, int64(e.key.CZ))
		writeU64(h, uint64(math.Float32bits(e.flux)))
	}
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		h.Write([]byte(a.ID))
		writeVec(h, a.Pos)
		writeU64(h, uint64(a.Heading))
		writeU64(h, uint64(a.Payload.Pack()))
		writeU64(h, uint64(a.Size))
		writeU64(h, uint64(a.Age))
		writeU64(h, uint64(a.Status.Kind))
		writeU64(h, uint64(a.Status.DurationTicks))
	}
	for _, e := range w.sched.entries() {
		writeU64(h, e.Tick)
		writeVec(h, e.Pos)
	}
	if st, err := w.pcg.MarshalBinary(); err == nil {
		h.Write(st)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeU64(h hash.Hash, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	h.Write(b[:])
}

func writeI64(h hash.Hash, v int64) { writeU64(h, uint64(v)) }

func writeVec(h hash.Hash, p voxel.Vec3i) {
	writeI64(h, int64(p.X))
	writeI64(h, int64(p.Y))
	writeI64(h, int64(p.Z))
}

// Run drives the world at its tick rate until ctx is done or Stop is called.
// While running, the world is only mutated from this goroutine; other
// goroutines go through Submit.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	w.log.Printf("running at %d Hz from tick %d", w.cfg.TickRateHz, w.tick.Load())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case cmd := <-w.cmds:
			w.apply(cmd)
		case <-ticker.C:
			tick, _ := w.StepOnce()
			if n := w.cfg.SnapshotEveryTicks; n > 0 && w.snapshotSink != nil && (tick+1)%uint64(n) == 0 {
				select {
				case w.snapshotSink <- w.ExportSnapshot():
				default:
					w.log.Printf("tick %d: snapshot sink full, dropped", tick)
				}
			}
		}
	}
}

func (w *World) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
}
