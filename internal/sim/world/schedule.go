package world

import (
	"container/heap"
	"sort"

	"taintcraft.ai/internal/sim/voxel"
)

type scheduled struct {
	Tick uint64
	Seq  uint64
	Pos  voxel.Vec3i
}

// tickQueue orders scheduled ticks by (Tick, Seq) so equal ticks run in the
// order they were requested.
type tickQueue []scheduled

func (q tickQueue) Len() int { return len(q) }
func (q tickQueue) Less(i, j int) bool {
	if q[i].Tick != q[j].Tick {
		return q[i].Tick < q[j].Tick
	}
	return q[i].Seq < q[j].Seq
}
func (q tickQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *tickQueue) Push(x any)   { *q = append(*q, x.(scheduled)) }
func (q *tickQueue) Pop() any {
	old := *q
	n := len(old)
	v := old[n-1]
	*q = old[:n-1]
	return v
}

type scheduler struct {
	q       tickQueue
	pending map[voxel.Vec3i]uint64 // earliest pending tick per position
	nextSeq uint64
}

func newScheduler() *scheduler {
	return &scheduler{pending: map[voxel.Vec3i]uint64{}}
}

// add schedules p at tick unless an earlier or equal tick is already pending.
func (s *scheduler) add(p voxel.Vec3i, tick uint64) {
	if t, ok := s.pending[p]; ok && t <= tick {
		return
	}
	s.pending[p] = tick
	heap.Push(&s.q, scheduled{Tick: tick, Seq: s.nextSeq, Pos: p})
	s.nextSeq++
}

// due pops every entry scheduled at or before now.
func (s *scheduler) due(now uint64) []voxel.Vec3i {
	var out []voxel.Vec3i
	for len(s.q) > 0 && s.q[0].Tick <= now {
		e := heap.Pop(&s.q).(scheduled)
		if t, ok := s.pending[e.Pos]; !ok || t != e.Tick {
			continue // superseded by an earlier request
		}
		delete(s.pending, e.Pos)
		out = append(out, e.Pos)
	}
	return out
}

func (s *scheduler) entries() []scheduled {
	out := make([]scheduled, 0, len(s.q))
	for _, e := range s.q {
		if t, ok := s.pending[e.Pos]; ok && t == e.Tick {
			out = append(out, e)
		}
	}
	tq := tickQueue(out)
	sort.Sort(tq)
	return tq
}

func (s *scheduler) restore(entries []scheduled, nextSeq uint64) {
	s.q = s.q[:0]
	s.pending = map[voxel.Vec3i]uint64{}
	for _, e := range entries {
		s.pending[e.Pos] = e.Tick
		s.q = append(s.q, e)
	}
	heap.Init(&s.q)
	s.nextSeq = nextSeq
}

func (s *scheduler) Len() int { return len(s.pending) }
