// Package fluid holds the level arithmetic of the contaminated fluid.
// Levels are zero-indexed: level n is n+1 eighths of a cell.
package fluid

import "taintcraft.ai/internal/sim/voxel"

const MaxLevel = voxel.MaxGooLevel

// Merge pours a cell at level here into the cell below it at level below.
// The lower cell keeps at most MaxLevel; whatever is left stays on top.
// rest is only meaningful when vacate is false.
func Merge(here, below int) (newBelow, rest int, vacate bool) {
	total := here + below + 2
	if total <= MaxLevel {
		return total, 0, true
	}
	rest = total - (MaxLevel + 1)
	if rest <= 0 {
		return MaxLevel, 0, true
	}
	return MaxLevel, rest, false
}

// Partial reports whether a cell at level can still take more fluid.
func Partial(level int) bool { return level < MaxLevel }

// Height is the top of the visual shape for level, in cells.
func Height(level int) float32 {
	return shapes[voxel.ClampLevel(level)]
}

var shapes = [MaxLevel + 1]float32{
	2.0 / 16, 4.0 / 16, 6.0 / 16, 8.0 / 16, 10.0 / 16, 12.0 / 16, 14.0 / 16, 16.0 / 16,
}

// Evaporation is the result of one evaporation step.
type Evaporation uint8

const (
	Lower    Evaporation = iota // drop one level
	Vanish                      // cell disappears, polluting the field
	Solidify                    // level 0 cell turns into fibre
)

// Evaporate decides what happens to a cell at level when it evaporates.
// coin is a fair coin flip supplied by the caller.
func Evaporate(level int, coin bool) Evaporation {
	if level > 0 {
		return Lower
	}
	if coin {
		return Vanish
	}
	return Solidify
}
