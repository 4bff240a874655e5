package seeds

import (
	"sync"
	"testing"
	"time"

	"taintcraft.ai/internal/sim/voxel"
)

func TestIsNearBoundary(t *testing.T) {
	s := NewState("r", 5) // R^2 = 25
	s.Register(voxel.Vec3i{})
	if !s.IsNear(voxel.Vec3i{X: 4, Y: 2, Z: 2}) { // 24
		t.Fatalf("R^2-1 should be near")
	}
	if !s.IsNear(voxel.Vec3i{X: 5}) { // 25
		t.Fatalf("R^2 should be near (inclusive)")
	}
	if s.IsNear(voxel.Vec3i{X: 5, Y: 1}) { // 26
		t.Fatalf("R^2+1 should not be near")
	}
}

func TestIsAtEdgeIsOpenInterval(t *testing.T) {
	s := NewState("r", 10) // fringe (64, 100)
	s.Register(voxel.Vec3i{})
	cases := []struct {
		p    voxel.Vec3i
		want bool
	}{
		{voxel.Vec3i{X: 8}, false},       // 64
		{voxel.Vec3i{X: 8, Y: 1}, true},  // 65
		{voxel.Vec3i{X: 9}, true},        // 81
		{voxel.Vec3i{X: 10}, false},      // 100
		{voxel.Vec3i{X: 2, Y: 2}, false}, // deep inside
	}
	for _, tc := range cases {
		if got := s.IsAtEdge(tc.p); got != tc.want {
			t.Fatalf("IsAtEdge(%v): got %v want %v", tc.p, got, tc.want)
		}
	}
}

func TestRegisterIsIdempotentAndUnregisterTolerant(t *testing.T) {
	s := NewState("r", 8)
	p := voxel.Vec3i{X: 1, Y: 2, Z: 3}
	if !s.Register(p) || s.Register(p) {
		t.Fatalf("second register should be a no-op")
	}
	if s.Len() != 1 {
		t.Fatalf("len: got %d want 1", s.Len())
	}
	if s.Unregister(voxel.Vec3i{}) {
		t.Fatalf("unregistering an unknown seed should report false")
	}
	old := s.Snapshot()
	if !s.Unregister(p) || s.Len() != 0 {
		t.Fatalf("unregister failed")
	}
	if old.Len() != 1 {
		t.Fatalf("published snapshot was mutated")
	}
}

func TestRegistryMissingRegionHasNoSeeds(t *testing.T) {
	r := NewRegistry(8)
	if r.IsNear("nowhere", voxel.Vec3i{}) || r.IsAtEdge("nowhere", voxel.Vec3i{X: 7}) {
		t.Fatalf("unknown region should behave as zero seeds")
	}
	if r.Unregister("nowhere", voxel.Vec3i{}) {
		t.Fatalf("unregister on unknown region should be a no-op")
	}
	r.Register("a", voxel.Vec3i{})
	if r.IsNear("b", voxel.Vec3i{}) {
		t.Fatalf("regions must not share seeds")
	}
	st := r.State("a")
	r.ClearRegion("a")
	if st.Len() != 0 || r.IsNear("a", voxel.Vec3i{}) {
		t.Fatalf("ClearRegion left seeds behind")
	}
}

func TestLivenessPolicySkipsAndPrunesStaleSeeds(t *testing.T) {
	dead := voxel.Vec3i{X: 100}
	r := NewRegistry(4)
	r.Register("a", voxel.Vec3i{})
	r.Register("a", dead)
	if !r.IsNear("a", dead) {
		t.Fatalf("without a policy stale seeds stay live")
	}
	r.SetLiveness(LivenessFunc(func(_ string, p voxel.Vec3i) bool { return p != dead }))
	if r.IsNear("a", dead) {
		t.Fatalf("policy should hide the dead seed")
	}
	if n := r.State("a").Revalidate(); n != 1 {
		t.Fatalf("revalidate removed %d, want 1", n)
	}
	if r.State("a").Len() != 1 {
		t.Fatalf("live seed should remain")
	}
}

func TestConcurrentRegisterAndScan(t *testing.T) {
	r := NewRegistry(6)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		g := g
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				p := voxel.Vec3i{X: i, Z: g}
				r.Register("shared", p)
				if i%3 == 0 {
					r.Unregister("shared", p)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = r.IsNear("shared", voxel.Vec3i{X: i})
				_ = r.IsAtEdge("shared", voxel.Vec3i{X: i})
			}
		}()
	}
	wg.Wait()
	// 200 per goroutine, every third removed: 133 survive.
	if got := r.State("shared").Len(); got != 4*133 {
		t.Fatalf("seed count: got %d want %d", got, 4*133)
	}
}

func TestScansDoNotWaitForWriters(t *testing.T) {
	s := NewState("a", 8)
	s.Register(voxel.Vec3i{})
	s.SetLiveness(LivenessFunc(func(string, voxel.Vec3i) bool { return true }))

	s.mu.Lock()
	defer s.mu.Unlock()
	done := make(chan bool, 1)
	go func() {
		done <- s.IsNear(voxel.Vec3i{X: 1}) && s.IsAtEdge(voxel.Vec3i{X: 7})
	}()
	select {
	case ok := <-done:
		if !ok {
			t.Fatalf("scan under a held writer lock gave the wrong answer")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scan blocked on the writer lock")
	}
}
