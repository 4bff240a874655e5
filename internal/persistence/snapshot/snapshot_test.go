package snapshot

import (
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "w1", "100.snap.zst")
	in := SnapshotV1{
		Header:  Header{WorldID: "w1", Tick: 100},
		Seed:    42,
		FloorY:  -8,
		Palette: []string{"AIR", "STONE"},
		Chunks:  []ChunkV1{{CX: 1, CY: -1, CZ: 2, Cells: make([]uint32, 4096)}},
		Agents:  []AgentV1{{ID: "S1", Kind: "seed", Pos: [3]int{1, 2, 3}}},
	}
	in.Chunks[0].Cells[17] = 0xabc

	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.WorldID != "w1" || h.Tick != 100 || h.Version != Version {
		t.Fatalf("header %+v", h)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Seed != 42 || len(out.Chunks) != 1 || out.Chunks[0].Cells[17] != 0xabc || out.Agents[0].Pos != [3]int{1, 2, 3} {
		t.Fatalf("snapshot mismatch: %+v", out)
	}
}

func TestReadSnapshotMissingFile(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error")
	}
}
