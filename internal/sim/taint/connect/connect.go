// Package connect computes face connectivity and neighbour density for
// contaminated cells.
package connect

import "taintcraft.ai/internal/sim/voxel"

type Reader interface {
	Cell(p voxel.Vec3i) voxel.Cell
	// FaceSturdy reports whether the given face of the cell at p can
	// support something attached to it.
	FaceSturdy(p voxel.Vec3i, face voxel.Dir) bool
}

// Connections returns the 6-bit mask of directions whose neighbour presents
// a sturdy face toward p.
func Connections(r Reader, p voxel.Vec3i) uint8 {
	var mask uint8
	for _, d := range voxel.Dirs {
		if r.FaceSturdy(p.Offset(d), d.Opposite()) {
			mask |= d.Bit()
		}
	}
	return mask
}

// HasCrystal is a pure function of the position and the down bit, so a
// recomputation only changes it when the down connection changes.
func HasCrystal(p voxel.Vec3i, mask uint8) bool {
	return mask&voxel.Down.Bit() != 0 && p.LinearIndex()%50 == 6
}

// Fibre builds the fibre cell that belongs at p given its current neighbours.
func Fibre(r Reader, p voxel.Vec3i) voxel.Cell {
	mask := Connections(r, p)
	return voxel.TaintFibre(mask, HasCrystal(p, mask))
}

func HasSturdyNeighbor(r Reader, p voxel.Vec3i) bool {
	return Connections(r, p) != 0
}

// IsOnlyAdjacentToTaint reports whether nothing but empty space and
// contaminated cells touches p, i.e. no uncontaminated material holds it.
func IsOnlyAdjacentToTaint(r Reader, p voxel.Vec3i) bool {
	for _, d := range voxel.Dirs {
		c := r.Cell(p.Offset(d))
		if !c.IsEmpty() && !c.IsTaint() {
			return false
		}
	}
	return true
}

// CountTaint counts contaminated axis neighbours of p.
func CountTaint(r Reader, p voxel.Vec3i) int {
	n := 0
	for _, d := range voxel.Dirs {
		if r.Cell(p.Offset(d)).IsTaint() {
			n++
		}
	}
	return n
}

// IsHemmedByTaint: at least 4 of the 6 axis neighbours are contaminated.
func IsHemmedByTaint(r Reader, p voxel.Vec3i) bool {
	return CountTaint(r, p) >= 4
}

// FibreFace returns the direction of the first fibre neighbour of p.
func FibreFace(r Reader, p voxel.Vec3i) (voxel.Dir, bool) {
	for _, d := range voxel.Dirs {
		if r.Cell(p.Offset(d)).Is(voxel.Fibre) {
			return d, true
		}
	}
	return voxel.Up, false
}
