package taint

import (
	"taintcraft.ai/internal/sim/catalogs"
	"taintcraft.ai/internal/sim/voxel"
)

type CellReader interface {
	Cell(p voxel.Vec3i) voxel.Cell
}

// CatalogClassifier answers Classifier queries from the material catalog for
// solid cells and from VariantProps for contaminated ones.
type CatalogClassifier struct {
	Cells     CellReader
	Materials *catalogs.MaterialCatalog
}

func (k CatalogClassifier) Hardness(p voxel.Vec3i) float32 {
	c := k.Cells.Cell(p)
	switch c.Kind {
	case voxel.KindSolid:
		return k.Materials.Props(c.Material).Hardness
	case voxel.KindTaint:
		return PropsOf(c.Variant).Hardness
	}
	return 0
}

func (k CatalogClassifier) Class(p voxel.Vec3i) voxel.Class {
	c := k.Cells.Cell(p)
	switch c.Kind {
	case voxel.KindSolid:
		return k.Materials.Props(c.Material).Class
	case voxel.KindTaint:
		return voxel.ClassTaint
	}
	return voxel.ClassNone
}

func (k CatalogClassifier) Replaceable(p voxel.Vec3i) bool {
	c := k.Cells.Cell(p)
	switch c.Kind {
	case voxel.KindSolid:
		return k.Materials.Props(c.Material).Replaceable
	case voxel.KindTaint:
		return false
	}
	return true
}

func (k CatalogClassifier) Occludes(p voxel.Vec3i) bool {
	c := k.Cells.Cell(p)
	switch c.Kind {
	case voxel.KindSolid:
		return k.Materials.Props(c.Material).Occluding
	case voxel.KindTaint:
		return PropsOf(c.Variant).Occluding
	}
	return false
}

// FaceSturdy treats every face of a full cube as sturdy.
func (k CatalogClassifier) FaceSturdy(p voxel.Vec3i, _ voxel.Dir) bool {
	c := k.Cells.Cell(p)
	switch c.Kind {
	case voxel.KindSolid:
		return k.Materials.Props(c.Material).FullCube
	case voxel.KindTaint:
		return PropsOf(c.Variant).Sturdy
	}
	return false
}

func (k CatalogClassifier) HasTag(p voxel.Vec3i, t voxel.Tag) bool {
	c := k.Cells.Cell(p)
	switch c.Kind {
	case voxel.KindSolid:
		return k.Materials.Props(c.Material).Tags.Has(t)
	case voxel.KindTaint:
		return PropsOf(c.Variant).Tags.Has(t)
	}
	return false
}
