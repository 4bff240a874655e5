// Package seeds tracks the points contamination spreads from and answers
// distance queries against them.
package seeds

import (
	"sync"
	"sync/atomic"

	"taintcraft.ai/internal/sim/voxel"
)

// LivenessPolicy decides whether a registered seed is still backed by the
// agent that registered it. A nil policy treats every seed as live until it
// is explicitly unregistered.
type LivenessPolicy interface {
	SeedAlive(region string, p voxel.Vec3i) bool
}

type LivenessFunc func(region string, p voxel.Vec3i) bool

func (f LivenessFunc) SeedAlive(region string, p voxel.Vec3i) bool { return f(region, p) }

// Snapshot is an immutable view of a region's seeds. Readers may keep and
// scan it for as long as they like; writers never modify a published one.
type Snapshot struct {
	coords []voxel.Vec3i
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.coords)
}

func (s *Snapshot) At(i int) voxel.Vec3i { return s.coords[i] }

// Coords returns a copy of the seed list.
func (s *Snapshot) Coords() []voxel.Vec3i {
	if s == nil {
		return nil
	}
	out := make([]voxel.Vec3i, len(s.coords))
	copy(out, s.coords)
	return out
}

func (s *Snapshot) contains(p voxel.Vec3i) bool {
	for _, c := range s.coords {
		if c == p {
			return true
		}
	}
	return false
}

var emptySnapshot = &Snapshot{}

// State is the seed set of one region. Mutations copy the current snapshot,
// edit the copy and publish it; scans never take the lock.
type State struct {
	region string
	radius int

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[Snapshot]

	liveness atomic.Pointer[policyRef]
}

type policyRef struct{ p LivenessPolicy }

func NewState(region string, influenceRadius int) *State {
	s := &State{region: region, radius: influenceRadius}
	s.snap.Store(emptySnapshot)
	return s
}

func (s *State) Region() string { return s.region }

func (s *State) InfluenceRadius() int { return s.radius }

// SetLiveness installs (or with nil removes) a liveness policy.
func (s *State) SetLiveness(p LivenessPolicy) {
	if p == nil {
		s.liveness.Store(nil)
		return
	}
	s.liveness.Store(&policyRef{p: p})
}

func (s *State) policy() LivenessPolicy {
	if ref := s.liveness.Load(); ref != nil {
		return ref.p
	}
	return nil
}

func (s *State) Snapshot() *Snapshot { return s.snap.Load() }

func (s *State) Len() int { return s.snap.Load().Len() }

// Register adds p. Registering an existing seed is a no-op.
func (s *State) Register(p voxel.Vec3i) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snap.Load()
	if cur.contains(p) {
		return false
	}
	next := make([]voxel.Vec3i, len(cur.coords), len(cur.coords)+1)
	copy(next, cur.coords)
	s.snap.Store(&Snapshot{coords: append(next, p)})
	return true
}

// Unregister removes p if present.
func (s *State) Unregister(p voxel.Vec3i) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snap.Load()
	for i, c := range cur.coords {
		if c != p {
			continue
		}
		next := make([]voxel.Vec3i, 0, len(cur.coords)-1)
		next = append(next, cur.coords[:i]...)
		next = append(next, cur.coords[i+1:]...)
		s.snap.Store(&Snapshot{coords: next})
		return true
	}
	return false
}

func (s *State) Clear() {
	s.mu.Lock()
	s.snap.Store(emptySnapshot)
	s.mu.Unlock()
}

// Revalidate drops every seed the liveness policy reports dead and returns
// how many were removed.
func (s *State) Revalidate() int {
	pol := s.policy()
	if pol == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snap.Load()
	next := make([]voxel.Vec3i, 0, len(cur.coords))
	for _, c := range cur.coords {
		if pol.SeedAlive(s.region, c) {
			next = append(next, c)
		}
	}
	removed := len(cur.coords) - len(next)
	if removed > 0 {
		s.snap.Store(&Snapshot{coords: next})
	}
	return removed
}

func (s *State) live(pol LivenessPolicy, p voxel.Vec3i) bool {
	return pol == nil || pol.SeedAlive(s.region, p)
}

// IsNear reports whether p is within the influence radius of any seed.
func (s *State) IsNear(p voxel.Vec3i) bool {
	if s == nil {
		return false
	}
	r2 := int64(s.radius) * int64(s.radius)
	snap, pol := s.snap.Load(), s.policy()
	for _, c := range snap.coords {
		if c.DistSq(p) <= r2 && s.live(pol, c) {
			return true
		}
	}
	return false
}

// IsAtEdge reports whether p lies in the outer fringe of some seed's
// influence: strictly farther than 0.8 of the radius, strictly nearer than
// the radius.
func (s *State) IsAtEdge(p voxel.Vec3i) bool {
	if s == nil {
		return false
	}
	r := float64(s.radius)
	outer := r * r
	inner := (0.8 * r) * (0.8 * r)
	snap, pol := s.snap.Load(), s.policy()
	for _, c := range snap.coords {
		d := float64(c.DistSq(p))
		if d > inner && d < outer && s.live(pol, c) {
			return true
		}
	}
	return false
}
