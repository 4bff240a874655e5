package multiworld

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"taintcraft.ai/internal/persistence/snapshot"
	"taintcraft.ai/internal/sim/catalogs"
	"taintcraft.ai/internal/sim/taint/seeds"
	"taintcraft.ai/internal/sim/tuning"
	"taintcraft.ai/internal/sim/voxel"
)

func testConfig() Config {
	return Config{
		DefaultWorldID: "A",
		Worlds: []WorldSpec{
			{ID: "A", Seeds: [][3]int{{0, 12, 0}}},
			{ID: "B", SeedOffset: 5, Players: [][3]int{{0, 12, 0}}},
		},
	}
}

func testOptions(t *testing.T, stateFile string) Options {
	t.Helper()
	tune := tuning.Defaults()
	tune.World.FloorY = 0
	return Options{
		BaseSeed:  42,
		Tuning:    tune,
		Catalogs:  catalogs.Default(),
		Registry:  seeds.NewRegistry(tune.Taint.InfluenceRadius),
		StateFile: stateFile,
	}
}

func TestBuild_SeedRegionsAreIsolated(t *testing.T) {
	opts := testOptions(t, "")
	m, err := Build(testConfig(), opts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer m.Close()

	if got := m.WorldIDs(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("world ids: %v", got)
	}
	p := voxel.Vec3i{X: 1, Y: 12, Z: 1}
	if !m.Registry().IsNear("A", p) {
		t.Fatalf("seed in A should cover %v", p)
	}
	if m.Registry().IsNear("B", p) {
		t.Fatalf("seed in A leaked into B")
	}
	if m.Runtime("B").World.Config().Seed != 47 {
		t.Fatalf("seed offset not applied")
	}
}

func TestRunAll_StopsWithContext(t *testing.T) {
	m, err := Build(testConfig(), testOptions(t, ""))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.RunAll(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for m.Runtime("A").World.CurrentTick() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run all: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("RunAll did not return")
	}
	if m.Runtime("A").World.CurrentTick() < 3 {
		t.Fatalf("world A did not tick")
	}
}

func TestBuild_ResumesFromRecordedSnapshot(t *testing.T) {
	dir := t.TempDir()
	stateFile := filepath.Join(dir, "state.json")

	m, err := Build(testConfig(), testOptions(t, stateFile))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	w := m.Runtime("A").World
	for i := 0; i < 10; i++ {
		w.StepOnce()
	}
	snap := w.ExportSnapshot()
	path := filepath.Join(dir, "A", "10.snap.zst")
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	m.RecordSnapshot("A", path, snap.Header.Tick)
	m.RecordSnapshot("A", "/stale", 3)
	if ref, _ := m.LatestSnapshot("A"); ref.Path != path {
		t.Fatalf("older snapshot replaced newer: %+v", ref)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.FlushState(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	m.Close()

	m2, err := Build(testConfig(), testOptions(t, stateFile))
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	defer m2.Close()
	if got := m2.Runtime("A").World.CurrentTick(); got != 10 {
		t.Fatalf("resumed tick: got %d want 10", got)
	}
	if got := m2.Runtime("B").World.CurrentTick(); got != 0 {
		t.Fatalf("B should start fresh, tick %d", got)
	}
	if !m2.Registry().IsNear("A", voxel.Vec3i{X: 0, Y: 12, Z: 0}) {
		t.Fatalf("seed agent did not re-register on resume")
	}
}

func TestNewManager_MissingRuntime(t *testing.T) {
	if _, err := NewManager(testConfig(), map[string]*Runtime{"A": {}}, nil, ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestClose_ClearsSeedRegistry(t *testing.T) {
	m, err := Build(testConfig(), testOptions(t, ""))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.Registry().State("A").Len() != 1 {
		t.Fatalf("world A should start with its configured seed")
	}
	m.Close()
	for _, id := range m.Registry().Regions() {
		if n := m.Registry().State(id).Len(); n != 0 {
			t.Fatalf("region %s still holds %d seeds after close", id, n)
		}
	}
	m.Close()
}
