package voxel

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func FromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) Offset(d Dir) Vec3i { return v.Add(d.Vec()) }

func (v Vec3i) Up() Vec3i   { return Vec3i{X: v.X, Y: v.Y + 1, Z: v.Z} }
func (v Vec3i) Down() Vec3i { return Vec3i{X: v.X, Y: v.Y - 1, Z: v.Z} }

// DistSq is the squared euclidean distance between two cells.
func (v Vec3i) DistSq(o Vec3i) int64 {
	dx := int64(v.X - o.X)
	dy := int64(v.Y - o.Y)
	dz := int64(v.Z - o.Z)
	return dx*dx + dy*dy + dz*dz
}

// LinearIndex packs the coordinate into one signed 64-bit value:
// 26 bits of x, 26 bits of z, 12 bits of y.
func (v Vec3i) LinearIndex() int64 {
	const (
		bitsXZ = 26
		bitsY  = 12
		maskXZ = (1 << bitsXZ) - 1
		maskY  = (1 << bitsY) - 1
	)
	return (int64(v.X)&maskXZ)<<(bitsXZ+bitsY) | (int64(v.Z)&maskXZ)<<bitsY | int64(v.Y)&maskY
}

// Cube calls fn for every cell of the (2r+1)^3 cube centred on v, v included.
// Iteration stops early when fn returns false.
func (v Vec3i) Cube(r int, fn func(p Vec3i) bool) {
	for dy := -r; dy <= r; dy++ {
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				if !fn(Vec3i{X: v.X + dx, Y: v.Y + dy, Z: v.Z + dz}) {
					return
				}
			}
		}
	}
}

// CubeNeighbor returns the i-th of the 26 cells surrounding v (i in [0,26)).
func (v Vec3i) CubeNeighbor(i int) Vec3i {
	if i >= 13 {
		i++ // skip the centre
	}
	return Vec3i{X: v.X + i%3 - 1, Y: v.Y + (i/3)%3 - 1, Z: v.Z + i/9 - 1}
}

type Dir uint8

const (
	Down Dir = iota
	Up
	North
	South
	West
	East
)

var Dirs = [6]Dir{Down, Up, North, South, West, East}

var Horizontal = [4]Dir{North, South, West, East}

var dirVecs = [6]Vec3i{
	Down:  {Y: -1},
	Up:    {Y: 1},
	North: {Z: -1},
	South: {Z: 1},
	West:  {X: -1},
	East:  {X: 1},
}

func (d Dir) Vec() Vec3i { return dirVecs[d%6] }

func (d Dir) Opposite() Dir { return d ^ 1 }

// Bit is the connection mask bit for d.
func (d Dir) Bit() uint8 { return 1 << d }

func (d Dir) Axis() Axis {
	switch d {
	case Down, Up:
		return AxisY
	case North, South:
		return AxisZ
	default:
		return AxisX
	}
}

func (d Dir) String() string {
	switch d {
	case Down:
		return "down"
	case Up:
		return "up"
	case North:
		return "north"
	case South:
		return "south"
	case West:
		return "west"
	case East:
		return "east"
	}
	return "?"
}

type Axis uint8

const (
	AxisY Axis = iota
	AxisX
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisZ:
		return "z"
	}
	return "y"
}
