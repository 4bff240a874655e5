// Package terrain generates the initial cells of a world column by column.
// Generation is a pure function of the seed and the coordinates.
package terrain

import "taintcraft.ai/internal/sim/voxel"

type Palette struct {
	Bedrock voxel.Material
	Stone   voxel.Material
	Dirt    voxel.Material
	Grass   voxel.Material
	Sand    voxel.Material
	Water   voxel.Material
	Log     voxel.Material
	Leaves  voxel.Material
}

type Params struct {
	Seed   int64
	FloorY int

	// Surface height is BaseHeight plus up to Relief cells of smooth noise.
	BaseHeight int
	Relief     int

	TreeGrid       int
	TreePermille   uint64
	PoolPermille   uint64
	DesertGrid     int
	DesertPermille uint64
}

func DefaultParams(seed int64, floorY int) Params {
	return Params{
		Seed:           seed,
		FloorY:         floorY,
		BaseHeight:     4,
		Relief:         6,
		TreeGrid:       7,
		TreePermille:   350,
		PoolPermille:   120,
		DesertGrid:     96,
		DesertPermille: 250,
	}
}

type Generator struct {
	p   Params
	pal Palette
}

func New(p Params, pal Palette) *Generator {
	if p.TreeGrid <= 0 {
		p.TreeGrid = 7
	}
	if p.DesertGrid <= 0 {
		p.DesertGrid = 96
	}
	return &Generator{p: p, pal: pal}
}

func (g *Generator) Params() Params { return g.p }

const reliefGrid = 16

// Surface is the y of the top solid cell of the column at (x,z).
func (g *Generator) Surface(x, z int) int {
	if g.p.Relief <= 0 {
		return g.p.BaseHeight
	}
	gx, gz := FloorDiv(x, reliefGrid), FloorDiv(z, reliefGrid)
	fx, fz := Mod(x, reliefGrid), Mod(z, reliefGrid)
	corner := func(cx, cz int) int {
		return int(Hash2(g.p.Seed+11, cx, cz) % uint64(g.p.Relief+1))
	}
	// Bilinear blend of the four lattice corners, in integer space.
	h00 := corner(gx, gz) * (reliefGrid - fx) * (reliefGrid - fz)
	h10 := corner(gx+1, gz) * fx * (reliefGrid - fz)
	h01 := corner(gx, gz+1) * (reliefGrid - fx) * fz
	h11 := corner(gx+1, gz+1) * fx * fz
	return g.p.BaseHeight + (h00+h10+h01+h11)/(reliefGrid*reliefGrid)
}

func (g *Generator) desert(x, z int) bool {
	return InCluster(g.p.Seed+301, x, z, g.p.DesertGrid, g.p.DesertGrid/3, g.p.DesertPermille)
}

func (g *Generator) pool(x, z int) bool {
	return InCluster(g.p.Seed+501, x, z, 48, 3, g.p.PoolPermille)
}

// Cell returns the generated cell at p.
func (g *Generator) Cell(p voxel.Vec3i) voxel.Cell {
	if p.Y < g.p.FloorY {
		return voxel.Empty()
	}
	if p.Y == g.p.FloorY {
		return voxel.Solid(g.pal.Bedrock)
	}
	surface := g.Surface(p.X, p.Z)
	switch {
	case p.Y <= surface-4:
		return voxel.Solid(g.pal.Stone)
	case p.Y < surface:
		if g.desert(p.X, p.Z) {
			return voxel.Solid(g.pal.Sand)
		}
		return voxel.Solid(g.pal.Dirt)
	case p.Y == surface:
		switch {
		case g.desert(p.X, p.Z):
			return voxel.Solid(g.pal.Sand)
		case g.pool(p.X, p.Z):
			return voxel.Solid(g.pal.Water)
		}
		return voxel.Solid(g.pal.Grass)
	}
	return g.tree(p)
}

type tree struct {
	base   voxel.Vec3i // first trunk cell
	height int
}

func (g *Generator) treeIn(gx, gz int) (tree, bool) {
	grid := g.p.TreeGrid
	h := Hash2(g.p.Seed+201, gx, gz)
	if h%1000 >= g.p.TreePermille {
		return tree{}, false
	}
	// Keep trunks off the cell border so canopies of neighbours rarely touch.
	span := grid - 2
	if span < 1 {
		span = 1
	}
	x := gx*grid + 1 + int((h>>10)%uint64(span))
	z := gz*grid + 1 + int((h>>20)%uint64(span))
	if g.desert(x, z) || g.pool(x, z) {
		return tree{}, false
	}
	return tree{
		base:   voxel.Vec3i{X: x, Y: g.Surface(x, z) + 1, Z: z},
		height: 4 + int((h>>30)%2),
	}, true
}

func (g *Generator) tree(p voxel.Vec3i) voxel.Cell {
	gx, gz := FloorDiv(p.X, g.p.TreeGrid), FloorDiv(p.Z, g.p.TreeGrid)
	var near [9]tree
	n := 0
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			if t, ok := g.treeIn(gx+dx, gz+dz); ok {
				near[n] = t
				n++
			}
		}
	}
	// Trunks win over any canopy that reaches them.
	for _, t := range near[:n] {
		if p.X == t.base.X && p.Z == t.base.Z && p.Y >= t.base.Y && p.Y < t.base.Y+t.height {
			return voxel.Solid(g.pal.Log)
		}
	}
	for _, t := range near[:n] {
		top := t.base.Y + t.height - 1
		ax, az := abs(p.X-t.base.X), abs(p.Z-t.base.Z)
		switch {
		case (p.Y == top-1 || p.Y == top) && ax <= 2 && az <= 2 && !(ax == 2 && az == 2):
			return voxel.Solid(g.pal.Leaves)
		case p.Y == top+1 && ax <= 1 && az <= 1:
			return voxel.Solid(g.pal.Leaves)
		}
	}
	return voxel.Empty()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
