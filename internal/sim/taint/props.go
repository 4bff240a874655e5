package taint

import "taintcraft.ai/internal/sim/voxel"

// VariantProps are the material properties of contaminated cells. Hosts use
// them to answer Classifier queries for cells the catalog does not cover.
type VariantProps struct {
	Hardness  float32
	Sturdy    bool // full cube with sturdy faces
	Occluding bool
	Tags      voxel.Tags
}

var variantProps = [...]VariantProps{
	voxel.Soil:    {Hardness: 0.5, Sturdy: true, Occluding: true, Tags: voxel.Tags(voxel.TagDirt)},
	voxel.Rock:    {Hardness: 1.5, Sturdy: true, Occluding: true, Tags: voxel.Tags(voxel.TagStone)},
	voxel.Crust:   {Hardness: 2, Sturdy: true, Occluding: true},
	voxel.Geyser:  {Hardness: 2, Sturdy: true, Occluding: true},
	voxel.Fibre:   {Hardness: 1},
	voxel.Feature: {Hardness: 1},
	voxel.Log:     {Hardness: 2, Sturdy: true, Occluding: true, Tags: voxel.Tags(voxel.TagLogs).With(voxel.TagWood)},
	voxel.Goo:     {Hardness: 100},
}

func PropsOf(v voxel.Variant) VariantProps {
	if int(v) >= len(variantProps) {
		return VariantProps{}
	}
	return variantProps[v]
}

// NominalGooLevel is the goo level a variant melts into when it dies.
func NominalGooLevel(v voxel.Variant) int {
	switch v {
	case voxel.Feature:
		return 3
	case voxel.Goo:
		return 0
	}
	return voxel.MaxGooLevel
}
