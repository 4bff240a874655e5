package taint

import (
	"taintcraft.ai/internal/sim/catalogs"
	"taintcraft.ai/internal/sim/tuning"
	"taintcraft.ai/internal/sim/voxel"
)

type Config struct {
	BaseRate float32
	Pacifist bool

	DeathChance         float32
	FluxCost            float32
	LeafFeatureChance   float32
	GeyserSpawnChance   float32
	GeyserPlayerRadius  int
	GeyserFieldCap      float32
	GeyserFieldGain     float32
	FeatureGeyserChance float32
	CrystalDropChance   float32

	GooEnabled         bool
	GooEvaporateChance float32
	GooPollution       float32

	Rules RuleTable

	// Death products.
	Dirt        voxel.Material
	PorousStone voxel.Material
}

func ConfigFromTuning(t tuning.TaintTuning, cats *catalogs.Catalogs) Config {
	rules := RuleTable(FibreRules())
	if t.Rules == "intended" {
		rules = IntendedRules()
	}
	return Config{
		BaseRate:            t.BaseRate,
		Pacifist:            t.Pacifist,
		DeathChance:         t.DeathChance,
		FluxCost:            t.FluxCost,
		LeafFeatureChance:   t.LeafFeatureChance,
		GeyserSpawnChance:   t.GeyserSpawnChance,
		GeyserPlayerRadius:  t.GeyserPlayerRadius,
		GeyserFieldCap:      t.GeyserFieldCap,
		GeyserFieldGain:     t.GeyserFieldGain,
		FeatureGeyserChance: t.FeatureGeyserChance,
		CrystalDropChance:   t.CrystalDropChance,
		GooEnabled:          t.GooOn(),
		GooEvaporateChance:  t.GooEvaporateChance,
		GooPollution:        t.GooPollution,
		Rules:               rules,
		Dirt:                cats.Materials.MustID("DIRT"),
		PorousStone:         cats.Materials.MustID("POROUS_STONE"),
	}
}

func DefaultConfig(cats *catalogs.Catalogs) Config {
	return ConfigFromTuning(tuning.Defaults().Taint, cats)
}
