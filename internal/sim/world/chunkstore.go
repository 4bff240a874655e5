package world

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"taintcraft.ai/internal/sim/voxel"
	"taintcraft.ai/internal/sim/world/terrain"
)

const (
	chunkSize  = 16
	chunkCells = chunkSize * chunkSize * chunkSize
)

type ChunkKey struct {
	CX, CY, CZ int
}

func chunkKeyOf(p voxel.Vec3i) ChunkKey {
	return ChunkKey{
		CX: terrain.FloorDiv(p.X, chunkSize),
		CY: terrain.FloorDiv(p.Y, chunkSize),
		CZ: terrain.FloorDiv(p.Z, chunkSize),
	}
}

func (k ChunkKey) less(o ChunkKey) bool {
	if k.CX != o.CX {
		return k.CX < o.CX
	}
	if k.CZ != o.CZ {
		return k.CZ < o.CZ
	}
	return k.CY < o.CY
}

// Origin is the world position of local (0,0,0).
func (k ChunkKey) Origin() voxel.Vec3i {
	return voxel.Vec3i{X: k.CX * chunkSize, Y: k.CY * chunkSize, Z: k.CZ * chunkSize}
}

type Chunk struct {
	Key   ChunkKey
	Cells []voxel.Cell // len = 16^3, x fastest, then z, then y

	taint int // contaminated cells
	dirty bool
	hash  [32]byte
}

func localIndex(p voxel.Vec3i) int {
	x := terrain.Mod(p.X, chunkSize)
	y := terrain.Mod(p.Y, chunkSize)
	z := terrain.Mod(p.Z, chunkSize)
	return x + z*chunkSize + y*chunkSize*chunkSize
}

func (c *Chunk) local(i int) voxel.Vec3i {
	o := c.Key.Origin()
	return voxel.Vec3i{
		X: o.X + i%chunkSize,
		Y: o.Y + i/(chunkSize*chunkSize),
		Z: o.Z + (i/chunkSize)%chunkSize,
	}
}

func (c *Chunk) set(i int, cell voxel.Cell) (old voxel.Cell, changed bool) {
	old = c.Cells[i]
	if old == cell {
		return old, false
	}
	if old.IsTaint() {
		c.taint--
	}
	if cell.IsTaint() {
		c.taint++
	}
	c.Cells[i] = cell
	c.dirty = true
	return old, true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [4]byte
		for _, v := range c.Cells {
			binary.LittleEndian.PutUint32(tmp[:], v.Pack())
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

// Packed returns the cells in snapshot form.
func (c *Chunk) Packed() []uint32 {
	out := make([]uint32, len(c.Cells))
	for i, v := range c.Cells {
		out[i] = v.Pack()
	}
	return out
}

type ChunkStore struct {
	gen    *terrain.Generator
	floorY int
	// Accessed only from the world loop goroutine.
	chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen *terrain.Generator, floorY int) *ChunkStore {
	return &ChunkStore{
		gen:    gen,
		floorY: floorY,
		chunks: map[ChunkKey]*Chunk{},
	}
}

func (s *ChunkStore) Get(p voxel.Vec3i) voxel.Cell {
	if p.Y < s.floorY {
		return voxel.Empty()
	}
	return s.chunk(chunkKeyOf(p)).Cells[localIndex(p)]
}

// Set stores c at p and returns the previous cell. Positions below the floor
// are ignored.
func (s *ChunkStore) Set(p voxel.Vec3i, c voxel.Cell) (voxel.Cell, bool) {
	if p.Y < s.floorY {
		return voxel.Empty(), false
	}
	return s.chunk(chunkKeyOf(p)).set(localIndex(p), c)
}

func (s *ChunkStore) chunk(k ChunkKey) *Chunk {
	if ch, ok := s.chunks[k]; ok {
		return ch
	}
	ch := &Chunk{Key: k, Cells: make([]voxel.Cell, chunkCells)}
	for i := range ch.Cells {
		c := s.gen.Cell(ch.local(i))
		ch.Cells[i] = c
		if c.IsTaint() {
			ch.taint++
		}
	}
	ch.dirty = true
	_ = ch.Digest()
	s.chunks[k] = ch
	return ch
}

// Loaded returns the chunk at k if it has been generated.
func (s *ChunkStore) Loaded(k ChunkKey) (*Chunk, bool) {
	ch, ok := s.chunks[k]
	return ch, ok
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// TaintCount is the number of contaminated cells in generated chunks.
func (s *ChunkStore) TaintCount() int {
	n := 0
	for _, ch := range s.chunks {
		n += ch.taint
	}
	return n
}

func (s *ChunkStore) importChunk(k ChunkKey, cells []voxel.Cell) {
	ch := &Chunk{Key: k, Cells: cells}
	for _, c := range cells {
		if c.IsTaint() {
			ch.taint++
		}
	}
	ch.dirty = true
	_ = ch.Digest()
	s.chunks[k] = ch
}
