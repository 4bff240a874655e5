package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"taintcraft.ai/internal/persistence/snapshot"
	"taintcraft.ai/internal/sim/catalogs"
	"taintcraft.ai/internal/sim/tuning"
	"taintcraft.ai/internal/sim/voxel"
	"taintcraft.ai/internal/sim/world"
)

func TestSQLiteIndex_TicksAndSnapshots(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cats := catalogs.Default()
	if err := idx.UpsertCatalogs(cats, tuning.Defaults()); err != nil {
		t.Fatalf("catalogs: %v", err)
	}

	_ = idx.WriteTick(world.TickLogEntry{Tick: 1, World: "w1", Digest: "quiet"})
	_ = idx.WriteTick(world.TickLogEntry{
		Tick: 2, World: "w1", Digest: "d2", Taint: 3, Agents: 1,
		Events: []world.Event{
			{Kind: "CONVERTED", Pos: [3]int{1, 2, 3}, To: "FIBRE[0]"},
			{Kind: "CONVERTED", Pos: [3]int{1, 3, 3}, To: "FIBRE[0]"},
			{Kind: "DIED", Pos: [3]int{4, 2, 3}, From: "ROCK"},
		},
	})
	cells := make([]uint32, 4096)
	cells[0] = voxel.TaintRock().Pack()
	cells[1] = voxel.Solid(cats.Materials.MustID("STONE")).Pack()
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, WorldID: "w1", Tick: 10},
		Seed:   42,
		Chunks: []snapshot.ChunkV1{{Cells: cells}},
		Agents: []snapshot.AgentV1{{ID: "S000001", Kind: "seed", Pos: [3]int{0, 5, 0}}},
		Aura:   []snapshot.AuraV1{{CX: 0, CZ: 0, Flux: 0.25}},
	}
	idx.RecordSnapshot("/data/w1/10.snap.zst", snap)
	idx.RecordSnapshotState(snap)
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	counts, err := idx.EventCounts(ctx, "w1")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["CONVERTED"] != 2 || counts["DIED"] != 1 {
		t.Fatalf("counts: %v", counts)
	}
	path, tick, ok, err := idx.LatestSnapshot(ctx, "w1")
	if err != nil || !ok || tick != 10 || path != "/data/w1/10.snap.zst" {
		t.Fatalf("latest snapshot: %q %d %v %v", path, tick, ok, err)
	}
	if _, _, ok, _ := idx.LatestSnapshot(ctx, "nope"); ok {
		t.Fatalf("unexpected snapshot for unknown world")
	}

	var ticks, taint, agents int
	var flux float64
	db := idx.db
	mustScan(t, db.QueryRow(`SELECT COUNT(*) FROM ticks WHERE world='w1'`), &ticks)
	mustScan(t, db.QueryRow(`SELECT taint FROM snapshots WHERE world='w1' AND tick=10`), &taint)
	mustScan(t, db.QueryRow(`SELECT COUNT(*) FROM agents_state WHERE world='w1'`), &agents)
	mustScan(t, db.QueryRow(`SELECT flux FROM aura_state WHERE world='w1' AND cx=0 AND cz=0`), &flux)
	if ticks != 1 || taint != 1 || agents != 1 || flux != 0.25 {
		t.Fatalf("rows: ticks=%d taint=%d agents=%d flux=%v", ticks, taint, agents, flux)
	}
	var n int
	mustScan(t, db.QueryRow(`SELECT COUNT(*) FROM catalogs`), &n)
	if n != 3 {
		t.Fatalf("catalog rows: %d", n)
	}
}

func mustScan(t *testing.T, row *sql.Row, dst any) {
	t.Helper()
	if err := row.Scan(dst); err != nil {
		t.Fatalf("scan: %v", err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick}

	ev := []world.Event{{Kind: "DIED"}}
	_ = s.WriteTick(world.TickLogEntry{Tick: 2, Events: ev})
	_ = s.WriteTick(world.TickLogEntry{Tick: 3}) // quiet, never queued
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})
	s.RecordSnapshotState(snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropSnapshotTotal != 1 || st.DropSnapshotStateTotal != 1 {
		t.Fatalf("drops: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}
