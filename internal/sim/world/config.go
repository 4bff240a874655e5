package world

import "taintcraft.ai/internal/sim/tuning"

type WorldConfig struct {
	ID         string
	Seed       int64
	TickRateHz int

	FloorY            int
	RandomTickSpeed   int
	SimDistanceChunks int
	AuraBase          float32

	SnapshotEveryTicks int

	// Seeds placed as seed agents when the world is created fresh.
	InitialSeeds [][3]int
	// Players placed when the world is created fresh.
	InitialPlayers [][3]int

	// Revalidate the seed registry against live seed agents.
	SeedLiveness bool
	// How often stale seeds are pruned when SeedLiveness is set.
	RevalidateEveryTicks int

	// Seed agents force a spread attempt every SeedPulseEveryTicks of their
	// age, at a random offset of up to SeedPulseReach on each axis.
	SeedPulseEveryTicks int
	SeedPulseReach      int
}

// ConfigFromTuning fills the world parameters from tuning.yaml.
func ConfigFromTuning(id string, seed int64, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                   id,
		Seed:                 seed,
		TickRateHz:           t.World.TickRateHz,
		FloorY:               t.World.FloorY,
		RandomTickSpeed:      t.World.RandomTickSpeed,
		SimDistanceChunks:    t.World.SimDistanceChunks,
		AuraBase:             t.World.AuraBase,
		SnapshotEveryTicks:   t.World.SnapshotEveryTicks,
		SeedLiveness:         t.Taint.SeedLiveness,
		RevalidateEveryTicks: 200,
		SeedPulseEveryTicks:  t.Taint.SeedPulseEveryTicks,
		SeedPulseReach:       t.Taint.SeedPulseReach,
	}
}

func (c *WorldConfig) normalize() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.RandomTickSpeed < 0 {
		c.RandomTickSpeed = 0
	}
	if c.SimDistanceChunks <= 0 {
		c.SimDistanceChunks = 4
	}
	if c.RevalidateEveryTicks <= 0 {
		c.RevalidateEveryTicks = 200
	}
	if c.SeedPulseEveryTicks <= 0 {
		c.SeedPulseEveryTicks = 20
	}
	if c.SeedPulseReach < 0 {
		c.SeedPulseReach = 0
	}
}
