package voxel

import "fmt"

type Kind uint8

const (
	KindEmpty Kind = iota
	KindSolid
	KindTaint
)

type Variant uint8

const (
	Soil Variant = iota
	Rock
	Crust
	Geyser
	Fibre
	Feature
	Log
	Goo
)

var variantNames = [...]string{
	Soil:    "soil",
	Rock:    "rock",
	Crust:   "crust",
	Geyser:  "geyser",
	Fibre:   "fibre",
	Feature: "feature",
	Log:     "log",
	Goo:     "goo",
}

func (v Variant) String() string {
	if int(v) < len(variantNames) {
		return variantNames[v]
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

const MaxGooLevel = 7

// Cell is the state of one grid cell. Only the fields that belong to the
// cell's Kind (and, for taint, its Variant) are meaningful; the constructors
// below keep the rest zeroed so cells compare with ==.
type Cell struct {
	Kind     Kind
	Material Material // KindSolid
	Variant  Variant  // KindTaint

	Connections uint8 // Fibre: 6-bit face mask, bit i = Dir(i)
	Crystal     bool  // Fibre
	Facing      Dir   // Feature
	Axis        Axis  // Log
	Level       uint8 // Goo: 0..7
}

func Empty() Cell { return Cell{} }

func Solid(m Material) Cell {
	if m == Air {
		return Cell{}
	}
	return Cell{Kind: KindSolid, Material: m}
}

func TaintSoil() Cell   { return Cell{Kind: KindTaint, Variant: Soil} }
func TaintRock() Cell   { return Cell{Kind: KindTaint, Variant: Rock} }
func TaintCrust() Cell  { return Cell{Kind: KindTaint, Variant: Crust} }
func TaintGeyser() Cell { return Cell{Kind: KindTaint, Variant: Geyser} }

func TaintFibre(connections uint8, crystal bool) Cell {
	return Cell{Kind: KindTaint, Variant: Fibre, Connections: connections & 0x3f, Crystal: crystal}
}

func TaintFeature(facing Dir) Cell {
	return Cell{Kind: KindTaint, Variant: Feature, Facing: facing % 6}
}

func TaintLog(axis Axis) Cell { return Cell{Kind: KindTaint, Variant: Log, Axis: axis % 3} }

func TaintGoo(level int) Cell {
	return Cell{Kind: KindTaint, Variant: Goo, Level: uint8(ClampLevel(level))}
}

func ClampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > MaxGooLevel {
		return MaxGooLevel
	}
	return level
}

func (c Cell) IsEmpty() bool { return c.Kind == KindEmpty }
func (c Cell) IsTaint() bool { return c.Kind == KindTaint }

func (c Cell) Is(v Variant) bool { return c.Kind == KindTaint && c.Variant == v }

// Pack encodes the cell into 32 bits:
// kind(2) | variant(3) | payload(16).
func (c Cell) Pack() uint32 {
	out := uint32(c.Kind) & 0x3
	switch c.Kind {
	case KindSolid:
		out |= uint32(c.Material) << 5
	case KindTaint:
		out |= (uint32(c.Variant) & 0x7) << 2
		var payload uint32
		switch c.Variant {
		case Fibre:
			payload = uint32(c.Connections & 0x3f)
			if c.Crystal {
				payload |= 1 << 6
			}
		case Feature:
			payload = uint32(c.Facing)
		case Log:
			payload = uint32(c.Axis)
		case Goo:
			payload = uint32(c.Level)
		}
		out |= payload << 5
	}
	return out
}

func UnpackCell(v uint32) (Cell, error) {
	kind := Kind(v & 0x3)
	payload := v >> 5
	switch kind {
	case KindEmpty:
		return Empty(), nil
	case KindSolid:
		if payload > 0xffff {
			return Cell{}, fmt.Errorf("packed cell %#x: material out of range", v)
		}
		return Solid(Material(payload)), nil
	case KindTaint:
		switch variant := Variant((v >> 2) & 0x7); variant {
		case Fibre:
			return TaintFibre(uint8(payload&0x3f), payload&(1<<6) != 0), nil
		case Feature:
			return TaintFeature(Dir(payload)), nil
		case Log:
			return TaintLog(Axis(payload)), nil
		case Goo:
			return TaintGoo(int(payload)), nil
		default:
			return Cell{Kind: KindTaint, Variant: variant}, nil
		}
	}
	return Cell{}, fmt.Errorf("packed cell %#x: unknown kind %d", v, kind)
}

func (c Cell) String() string {
	switch c.Kind {
	case KindEmpty:
		return "empty"
	case KindSolid:
		return fmt.Sprintf("solid(%d)", c.Material)
	}
	switch c.Variant {
	case Fibre:
		return fmt.Sprintf("taint:fibre(%06b,crystal=%t)", c.Connections, c.Crystal)
	case Feature:
		return fmt.Sprintf("taint:feature(%s)", c.Facing)
	case Log:
		return fmt.Sprintf("taint:log(%s)", c.Axis)
	case Goo:
		return fmt.Sprintf("taint:goo(%d)", c.Level)
	}
	return "taint:" + c.Variant.String()
}
