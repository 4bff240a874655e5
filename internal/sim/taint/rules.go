package taint

import "taintcraft.ai/internal/sim/voxel"

// Path is the branch of the spread engine that picked a candidate.
type Path uint8

const (
	PathPrimary   Path = iota + 1 // open space next to a sturdy surface
	PathLeaf                      // leaves
	PathEnclosure                 // hemmed in by contamination
)

func (p Path) String() string {
	switch p {
	case PathPrimary:
		return "primary"
	case PathLeaf:
		return "leaf"
	case PathEnclosure:
		return "enclosure"
	}
	return "none"
}

// Intent describes a candidate cell the engine decided to convert.
type Intent struct {
	Path  Path
	Class voxel.Class
	Tags  voxel.Tags
	// Feature is set on the leaf path when the roll asked for a growth
	// facing away from the neighbouring fibre.
	Feature bool
}

// RuleTable picks the variant a candidate turns into.
type RuleTable interface {
	Target(in Intent) voxel.Variant
}

// Rule matches an intent on path and on any of its classes or tags.
// Empty Classes and zero AnyTags match everything on the path.
type Rule struct {
	Path    Path
	Classes []voxel.Class
	AnyTags voxel.Tags
	Feature bool // require Intent.Feature
	Target  voxel.Variant
}

func (r Rule) matches(in Intent) bool {
	if r.Path != 0 && r.Path != in.Path {
		return false
	}
	if r.Feature && !in.Feature {
		return false
	}
	if len(r.Classes) == 0 && r.AnyTags == 0 {
		return true
	}
	for _, c := range r.Classes {
		if c == in.Class {
			return true
		}
	}
	return uint32(r.AnyTags)&uint32(in.Tags) != 0
}

// Table is an ordered rule list; the first match wins.
type Table struct {
	Rules   []Rule
	Default voxel.Variant
}

func (t Table) Target(in Intent) voxel.Variant {
	for _, r := range t.Rules {
		if r.matches(in) {
			return r.Target
		}
	}
	return t.Default
}

// FibreRules turns every candidate into fibre.
func FibreRules() Table {
	return Table{Default: voxel.Fibre}
}

// IntendedRules distinguishes targets by material: wood becomes log, plants
// and fungi crust, loose ground soil, stone rock, and leaves may sprout a
// feature.
func IntendedRules() Table {
	tags := func(ts ...voxel.Tag) voxel.Tags {
		var out voxel.Tags
		for _, t := range ts {
			out = out.With(t)
		}
		return out
	}
	return Table{
		Default: voxel.Fibre,
		Rules: []Rule{
			{Path: PathLeaf, Feature: true, Target: voxel.Feature},
			{Path: PathEnclosure, Classes: []voxel.Class{voxel.ClassWood}, AnyTags: tags(voxel.TagLogs, voxel.TagWood), Target: voxel.Log},
			{Path: PathEnclosure, Classes: []voxel.Class{voxel.ClassPlant, voxel.ClassFungus, voxel.ClassCactus, voxel.ClassLeaves},
				AnyTags: tags(voxel.TagPlant, voxel.TagFungus, voxel.TagMushroom, voxel.TagCactus), Target: voxel.Crust},
			{Path: PathEnclosure, Classes: []voxel.Class{voxel.ClassSoil, voxel.ClassSand},
				AnyTags: tags(voxel.TagSand, voxel.TagDirt, voxel.TagGrass, voxel.TagClay), Target: voxel.Soil},
			{Path: PathEnclosure, Classes: []voxel.Class{voxel.ClassStone}, AnyTags: tags(voxel.TagStone), Target: voxel.Rock},
		},
	}
}

// RuleFunc adapts a function to RuleTable.
type RuleFunc func(in Intent) voxel.Variant

func (f RuleFunc) Target(in Intent) voxel.Variant { return f(in) }
