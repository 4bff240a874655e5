package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"taintcraft.ai/internal/persistence/snapshot"
)

func writeDummy(t *testing.T, path string, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestArchiveEpochSnapshot_CopiesBoundarySnapshot(t *testing.T) {
	worldDir := filepath.Join(t.TempDir(), "worlds", "OVERWORLD")
	src := filepath.Join(worldDir, "snapshots", "6000.snap.zst")
	writeDummy(t, src, "dummy")

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, WorldID: "OVERWORLD", Tick: 6000},
		Seed:   42,
		Chunks: make([]snapshot.ChunkV1, 3),
	}
	epoch, archivedPath, ok, err := ArchiveEpochSnapshot(worldDir, src, snap, 3000)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !ok || epoch != 2 {
		t.Fatalf("archived=%v epoch=%d, want true 2", ok, epoch)
	}
	got, err := os.ReadFile(archivedPath)
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	if string(got) != "dummy" {
		t.Fatalf("archived content mismatch: %q", got)
	}

	raw, err := os.ReadFile(filepath.Join(filepath.Dir(archivedPath), "meta.json"))
	if err != nil {
		t.Fatalf("meta.json: %v", err)
	}
	var meta EpochArchiveMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Epoch != 2 || meta.WorldID != "OVERWORLD" || meta.Chunks != 3 || meta.Snapshot != "6000.snap.zst" {
		t.Fatalf("meta: %+v", meta)
	}
}

func TestArchiveEpochSnapshot_SkipsOffBoundary(t *testing.T) {
	worldDir := t.TempDir()
	for _, tick := range []uint64{0, 2999, 3001} {
		snap := snapshot.SnapshotV1{Header: snapshot.Header{Tick: tick}}
		if _, _, ok, err := ArchiveEpochSnapshot(worldDir, "unused", snap, 3000); ok || err != nil {
			t.Fatalf("tick %d: archived=%v err=%v", tick, ok, err)
		}
	}
	snap := snapshot.SnapshotV1{Header: snapshot.Header{Tick: 3000}}
	if _, _, ok, _ := ArchiveEpochSnapshot(worldDir, "unused", snap, 0); ok {
		t.Fatalf("epoch 0 disables archiving")
	}
}

func TestPruneSnapshots(t *testing.T) {
	worldDir := t.TempDir()
	dir := filepath.Join(worldDir, "snapshots")
	for _, tick := range []int{100, 2000, 300, 40} {
		writeDummy(t, filepath.Join(dir, fmt.Sprintf("%d.snap.zst", tick)), "x")
	}
	writeDummy(t, filepath.Join(dir, "notes.txt"), "keep me")

	removed, err := PruneSnapshots(worldDir, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed %v", removed)
	}
	for _, name := range []string{"2000.snap.zst", "300.snap.zst", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s should remain: %v", name, err)
		}
	}
	for _, name := range []string{"100.snap.zst", "40.snap.zst"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Fatalf("%s should be gone: %v", name, err)
		}
	}

	if removed, err := PruneSnapshots(filepath.Join(worldDir, "missing"), 2); err != nil || removed != nil {
		t.Fatalf("missing dir: %v %v", removed, err)
	}
}
