package voxel

import "strings"

// Material is a palette id assigned when the material catalog is loaded.
// Id 0 is always AIR.
type Material uint16

const Air Material = 0

// Class is the coarse material family used by the spread rules.
type Class uint8

const (
	ClassNone Class = iota
	ClassStone
	ClassSoil
	ClassSand
	ClassWood
	ClassLeaves
	ClassPlant
	ClassFungus
	ClassCactus
	ClassWater
	ClassLava
	ClassFire
	ClassTaint
	ClassOther
)

var classNames = map[string]Class{
	"none":   ClassNone,
	"stone":  ClassStone,
	"soil":   ClassSoil,
	"sand":   ClassSand,
	"wood":   ClassWood,
	"leaves": ClassLeaves,
	"plant":  ClassPlant,
	"fungus": ClassFungus,
	"cactus": ClassCactus,
	"water":  ClassWater,
	"lava":   ClassLava,
	"fire":   ClassFire,
	"taint":  ClassTaint,
	"other":  ClassOther,
}

func ParseClass(s string) (Class, bool) {
	c, ok := classNames[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

func (c Class) String() string {
	for k, v := range classNames {
		if v == c {
			return k
		}
	}
	return "unknown"
}

// Liquid reports whether falling masses sink through the class.
func (c Class) Liquid() bool { return c == ClassWater || c == ClassLava }

// Tag is a single tag bit; Tags is a set of them.
type Tag uint32

type Tags uint32

const (
	TagLogs Tag = 1 << iota
	TagLeaves
	TagPlant
	TagMushroom
	TagFungus
	TagCactus
	TagSand
	TagDirt
	TagGrass
	TagClay
	TagStone
	TagWood
)

var tagNames = map[string]Tag{
	"logs":     TagLogs,
	"leaves":   TagLeaves,
	"plant":    TagPlant,
	"mushroom": TagMushroom,
	"fungus":   TagFungus,
	"cactus":   TagCactus,
	"sand":     TagSand,
	"dirt":     TagDirt,
	"grass":    TagGrass,
	"clay":     TagClay,
	"stone":    TagStone,
	"wood":     TagWood,
}

func ParseTag(s string) (Tag, bool) {
	t, ok := tagNames[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

func (ts Tags) Has(t Tag) bool { return uint32(ts)&uint32(t) != 0 }

func (ts Tags) With(t Tag) Tags { return Tags(uint32(ts) | uint32(t)) }

// Any reports whether ts holds at least one of the given tags.
func (ts Tags) Any(t ...Tag) bool {
	for _, x := range t {
		if ts.Has(x) {
			return true
		}
	}
	return false
}
