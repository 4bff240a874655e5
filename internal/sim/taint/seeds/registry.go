package seeds

import (
	"sort"
	"sync"

	"taintcraft.ai/internal/sim/voxel"
)

// Registry maps region ids to their seed state. Regions are created on the
// first registration; a region that was never registered has no seeds.
type Registry struct {
	radius int

	mu       sync.RWMutex
	regions  map[string]*State
	liveness LivenessPolicy
}

func NewRegistry(influenceRadius int) *Registry {
	return &Registry{
		radius:  influenceRadius,
		regions: map[string]*State{},
	}
}

// SetLiveness installs p on every current and future region.
func (r *Registry) SetLiveness(p LivenessPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liveness = p
	for _, s := range r.regions {
		s.SetLiveness(p)
	}
}

// State returns the region's state, creating it if needed.
func (r *Registry) State(region string) *State {
	r.mu.RLock()
	s := r.regions[region]
	r.mu.RUnlock()
	if s != nil {
		return s
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s = r.regions[region]; s != nil {
		return s
	}
	s = NewState(region, r.radius)
	if r.liveness != nil {
		s.SetLiveness(r.liveness)
	}
	r.regions[region] = s
	return s
}

func (r *Registry) lookup(region string) *State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.regions[region]
}

func (r *Registry) Register(region string, p voxel.Vec3i) bool {
	return r.State(region).Register(p)
}

func (r *Registry) Unregister(region string, p voxel.Vec3i) bool {
	s := r.lookup(region)
	if s == nil {
		return false
	}
	return s.Unregister(p)
}

func (r *Registry) IsNear(region string, p voxel.Vec3i) bool {
	return r.lookup(region).IsNear(p)
}

func (r *Registry) IsAtEdge(region string, p voxel.Vec3i) bool {
	return r.lookup(region).IsAtEdge(p)
}

// ClearRegion forgets a region's seeds, e.g. when it unloads. The State
// itself stays registered so holders of it keep seeing the same set.
func (r *Registry) ClearRegion(region string) {
	if s := r.lookup(region); s != nil {
		s.Clear()
	}
}

// Clear empties every region (shutdown).
func (r *Registry) Clear() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.regions {
		s.Clear()
	}
}

func (r *Registry) Regions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.regions))
	for id := range r.regions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
