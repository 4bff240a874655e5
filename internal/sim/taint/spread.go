package taint

import (
	"taintcraft.ai/internal/sim/taint/connect"
	"taintcraft.ai/internal/sim/taint/seeds"
	"taintcraft.ai/internal/sim/voxel"
)

// Reason says why a spread attempt did nothing.
type Reason string

const (
	ReasonPacifist Reason = "pacifist"
	ReasonChance   Reason = "chance"
	ReasonNoSeed   Reason = "no_seed"
	ReasonSelf     Reason = "self"
	ReasonTainted  Reason = "tainted"
	ReasonHardness Reason = "hardness"
	ReasonWater    Reason = "water"
	ReasonNoMatch  Reason = "no_match"
)

type SpreadResult struct {
	Converted bool
	Target    voxel.Vec3i
	Path      Path
	Cell      voxel.Cell
	Reason    Reason
}

const (
	maxSpreadHardness     = 10
	maxEnclosureHardness  = 5
	fluxSaturationWeight  = 2
	fluxSaturationMinimum = 0.001
)

// Engine converts one neighbour of a contaminated cell per call.
type Engine struct {
	cfg   Config
	seeds *seeds.State
}

func NewEngine(cfg Config, st *seeds.State) *Engine {
	if cfg.Rules == nil {
		cfg.Rules = FibreRules()
	}
	return &Engine{cfg: cfg, seeds: st}
}

// Chance is the acceptance probability of an unforced attempt at p.
func (e *Engine) Chance(h Field, p voxel.Vec3i) float32 {
	return e.cfg.BaseRate / 100 * (fluxSaturationMinimum + h.Sample(p)*fluxSaturationWeight)
}

// TrySpread picks a random cell around p and converts it if the rules allow.
// forced skips the pacifist switch and the probability roll but never the
// seed proximity check.
func (e *Engine) TrySpread(h Host, p voxel.Vec3i, rng Rand, forced bool) SpreadResult {
	if !forced && e.cfg.Pacifist {
		return SpreadResult{Reason: ReasonPacifist}
	}
	if !forced && rng.Float32() > e.Chance(h, p) {
		return SpreadResult{Reason: ReasonChance}
	}
	if !e.seeds.IsNear(p) {
		return SpreadResult{Reason: ReasonNoSeed}
	}

	t := p.CubeNeighbor(rng.IntN(26))
	if t == p {
		return SpreadResult{Target: t, Reason: ReasonSelf}
	}
	cell := h.Cell(t)
	if cell.IsTaint() {
		return SpreadResult{Target: t, Reason: ReasonTainted}
	}
	hardness := h.Hardness(t)
	if hardness < 0 || hardness > maxSpreadHardness {
		return SpreadResult{Target: t, Reason: ReasonHardness}
	}
	class := h.Class(t)
	if class == voxel.ClassWater {
		return SpreadResult{Target: t, Reason: ReasonWater}
	}

	if !h.Occludes(t) &&
		(cell.IsEmpty() || h.Replaceable(t) || h.HasTag(t, voxel.TagPlant)) &&
		connect.HasSturdyNeighbor(h, t) &&
		!connect.IsOnlyAdjacentToTaint(h, t) {
		return e.convert(h, t, Intent{Path: PathPrimary, Class: class, Tags: tagsAt(h, t)})
	}

	if h.HasTag(t, voxel.TagLeaves) {
		in := Intent{Path: PathLeaf, Class: class, Tags: tagsAt(h, t)}
		in.Feature = rng.Float32() < e.cfg.LeafFeatureChance
		return e.convert(h, t, in)
	}

	if hardness < maxEnclosureHardness && connect.IsHemmedByTaint(h, t) {
		return e.convert(h, t, Intent{Path: PathEnclosure, Class: class, Tags: tagsAt(h, t)})
	}
	return SpreadResult{Target: t, Reason: ReasonNoMatch}
}

func (e *Engine) convert(h Host, t voxel.Vec3i, in Intent) SpreadResult {
	from := h.Cell(t)
	to := e.build(h, t, in, e.cfg.Rules.Target(in))
	h.SetCell(t, to, UpdateAll)
	h.Emit(Effect{Kind: EffectConverted, Pos: t, From: from, To: to})
	h.Drain(t, e.cfg.FluxCost)
	return SpreadResult{Converted: true, Target: t, Path: in.Path, Cell: to}
}

func (e *Engine) build(h Host, t voxel.Vec3i, in Intent, v voxel.Variant) voxel.Cell {
	switch v {
	case voxel.Fibre:
		return connect.Fibre(h, t)
	case voxel.Feature:
		// Grow away from the fibre that reached this cell.
		face, _ := connect.FibreFace(h, t)
		return voxel.TaintFeature(face.Opposite())
	case voxel.Log:
		return voxel.TaintLog(voxel.AxisY)
	case voxel.Goo:
		return voxel.TaintGoo(voxel.MaxGooLevel)
	}
	return voxel.Cell{Kind: voxel.KindTaint, Variant: v}
}

var allTags = []voxel.Tag{
	voxel.TagLogs, voxel.TagLeaves, voxel.TagPlant, voxel.TagMushroom, voxel.TagFungus, voxel.TagCactus,
	voxel.TagSand, voxel.TagDirt, voxel.TagGrass, voxel.TagClay, voxel.TagStone, voxel.TagWood,
}

func tagsAt(h Classifier, p voxel.Vec3i) voxel.Tags {
	var ts voxel.Tags
	for _, t := range allTags {
		if h.HasTag(p, t) {
			ts = ts.With(t)
		}
	}
	return ts
}
