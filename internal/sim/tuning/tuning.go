package tuning

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	World WorldTuning `yaml:"world"`
	Taint TaintTuning `yaml:"taint"`
}

type WorldTuning struct {
	TickRateHz         int     `yaml:"tick_rate_hz"`
	RandomTickSpeed    int     `yaml:"random_tick_speed"`
	SimDistanceChunks  int     `yaml:"sim_distance_chunks"`
	FloorY             int     `yaml:"floor_y"`
	SnapshotEveryTicks int     `yaml:"snapshot_every_ticks"`
	AuraBase           float32 `yaml:"aura_base"`
}

type TaintTuning struct {
	InfluenceRadius     int     `yaml:"influence_radius"`
	BaseRate            float32 `yaml:"base_rate"`
	Pacifist            bool    `yaml:"pacifist"`
	DeathChance         float32 `yaml:"death_chance"`
	FluxCost            float32 `yaml:"flux_cost"`
	LeafFeatureChance   float32 `yaml:"leaf_feature_chance"`
	GeyserSpawnChance   float32 `yaml:"geyser_spawn_chance"`
	GeyserPlayerRadius  int     `yaml:"geyser_player_radius"`
	GeyserFieldCap      float32 `yaml:"geyser_field_cap"`
	GeyserFieldGain     float32 `yaml:"geyser_field_gain"`
	FeatureGeyserChance float32 `yaml:"feature_geyser_chance"`
	GooEnabled          *bool   `yaml:"goo_enabled"`
	GooEvaporateChance  float32 `yaml:"goo_evaporate_chance"`
	GooPollution        float32 `yaml:"goo_pollution"`
	CrystalDropChance   float32 `yaml:"crystal_drop_chance"`
	Rules               string  `yaml:"rules"`
	SeedLiveness        bool    `yaml:"seed_liveness"`
	// Seed agents push a forced spread attempt this often, somewhere within
	// pulse reach of themselves.
	SeedPulseEveryTicks int `yaml:"seed_pulse_every_ticks"`
	SeedPulseReach      int `yaml:"seed_pulse_reach"`
}

// EnvOverrides are applied on top of the file so operators can flip the
// common switches without editing tuning.yaml.
type EnvOverrides struct {
	Pacifist        *bool    `env:"TAINT_PACIFIST"`
	InfluenceRadius *int     `env:"TAINT_INFLUENCE_RADIUS"`
	BaseRate        *float32 `env:"TAINT_BASE_RATE"`
	Rules           string   `env:"TAINT_RULES"`
	TickRateHz      *int     `env:"TAINT_TICK_RATE_HZ"`
}

func Defaults() Tuning {
	goo := true
	return Tuning{
		World: WorldTuning{
			TickRateHz:         20,
			RandomTickSpeed:    3,
			SimDistanceChunks:  4,
			FloorY:             -64,
			SnapshotEveryTicks: 6000,
			AuraBase:           0.1,
		},
		Taint: TaintTuning{
			InfluenceRadius:     32,
			BaseRate:            100,
			DeathChance:         0.1,
			FluxCost:            0.01,
			LeafFeatureChance:   0.6,
			GeyserSpawnChance:   0.2,
			GeyserPlayerRadius:  32,
			GeyserFieldCap:      2.0,
			GeyserFieldGain:     0.25,
			FeatureGeyserChance: 0.01,
			GooEnabled:          &goo,
			GooEvaporateChance:  0.25,
			GooPollution:        1.0,
			CrystalDropChance:   0.13,
			Rules:               "fibre",
			SeedPulseEveryTicks: 20,
			SeedPulseReach:      2,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// ApplyEnv overlays TAINT_* environment variables.
func (t *Tuning) ApplyEnv() error {
	var o EnvOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.Pacifist != nil {
		t.Taint.Pacifist = *o.Pacifist
	}
	if o.InfluenceRadius != nil {
		t.Taint.InfluenceRadius = *o.InfluenceRadius
	}
	if o.BaseRate != nil {
		t.Taint.BaseRate = *o.BaseRate
	}
	if o.Rules != "" {
		t.Taint.Rules = o.Rules
	}
	if o.TickRateHz != nil {
		t.World.TickRateHz = *o.TickRateHz
	}
	t.Normalize()
	return t.Validate()
}

// Normalize fills zero values with defaults. Probabilities of exactly zero
// are legal, so only fields where zero makes no sense are touched.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.World.TickRateHz <= 0 {
		t.World.TickRateHz = d.World.TickRateHz
	}
	if t.World.RandomTickSpeed < 0 {
		t.World.RandomTickSpeed = 0
	}
	if t.World.SimDistanceChunks <= 0 {
		t.World.SimDistanceChunks = d.World.SimDistanceChunks
	}
	if t.World.SnapshotEveryTicks < 0 {
		t.World.SnapshotEveryTicks = 0
	}
	if t.Taint.InfluenceRadius <= 0 {
		t.Taint.InfluenceRadius = d.Taint.InfluenceRadius
	}
	if t.Taint.GeyserPlayerRadius <= 0 {
		t.Taint.GeyserPlayerRadius = d.Taint.GeyserPlayerRadius
	}
	if t.Taint.SeedPulseEveryTicks <= 0 {
		t.Taint.SeedPulseEveryTicks = d.Taint.SeedPulseEveryTicks
	}
	if t.Taint.SeedPulseReach < 0 {
		t.Taint.SeedPulseReach = 0
	}
	if t.Taint.GooEnabled == nil {
		t.Taint.GooEnabled = d.Taint.GooEnabled
	}
	t.Taint.Rules = strings.ToLower(strings.TrimSpace(t.Taint.Rules))
	if t.Taint.Rules == "" {
		t.Taint.Rules = d.Taint.Rules
	}
}

func (t Tuning) Validate() error {
	probs := map[string]float32{
		"death_chance":          t.Taint.DeathChance,
		"leaf_feature_chance":   t.Taint.LeafFeatureChance,
		"geyser_spawn_chance":   t.Taint.GeyserSpawnChance,
		"feature_geyser_chance": t.Taint.FeatureGeyserChance,
		"goo_evaporate_chance":  t.Taint.GooEvaporateChance,
		"crystal_drop_chance":   t.Taint.CrystalDropChance,
	}
	for k, v := range probs {
		if v < 0 || v > 1 {
			return fmt.Errorf("taint.%s must be in [0,1], got %v", k, v)
		}
	}
	if t.Taint.DeathChance == 0 {
		return fmt.Errorf("taint.death_chance must be > 0")
	}
	if t.Taint.BaseRate < 0 {
		return fmt.Errorf("taint.base_rate must be >= 0")
	}
	switch t.Taint.Rules {
	case "fibre", "intended":
	default:
		return fmt.Errorf("taint.rules: unknown table %q", t.Taint.Rules)
	}
	return nil
}

func (t TaintTuning) GooOn() bool { return t.GooEnabled == nil || *t.GooEnabled }
