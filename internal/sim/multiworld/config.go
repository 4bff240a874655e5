package multiworld

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"taintcraft.ai/internal/sim/tuning"
	"taintcraft.ai/internal/sim/world"
)

type Config struct {
	DefaultWorldID string      `yaml:"default_world_id"`
	Worlds         []WorldSpec `yaml:"worlds"`
}

// WorldSpec describes one region. Zero-valued overrides fall back to
// tuning.yaml.
type WorldSpec struct {
	ID         string   `yaml:"id"`
	SeedOffset int64    `yaml:"seed_offset"`
	Seeds      [][3]int `yaml:"seeds,omitempty"`
	Players    [][3]int `yaml:"players,omitempty"`

	RandomTickSpeed    int   `yaml:"random_tick_speed,omitempty"`
	SnapshotEveryTicks int   `yaml:"snapshot_every_ticks,omitempty"`
	Pacifist           *bool `yaml:"pacifist,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg = Config{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DefaultWorldID: "OVERWORLD",
		Worlds: []WorldSpec{
			{
				ID:      "OVERWORLD",
				Seeds:   [][3]int{{0, 12, 0}},
				Players: [][3]int{{8, 12, 8}},
			},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Worlds {
		c.Worlds[i].ID = strings.ToUpper(strings.TrimSpace(c.Worlds[i].ID))
	}
	c.DefaultWorldID = strings.ToUpper(strings.TrimSpace(c.DefaultWorldID))
	if c.DefaultWorldID == "" && len(c.Worlds) > 0 {
		c.DefaultWorldID = c.Worlds[0].ID
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if len(c.Worlds) == 0 {
		return fmt.Errorf("worlds must not be empty")
	}
	seen := map[string]bool{}
	for _, w := range c.Worlds {
		if w.ID == "" {
			return fmt.Errorf("world id must not be empty")
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate world id: %s", w.ID)
		}
		seen[w.ID] = true
		if w.RandomTickSpeed < 0 {
			return fmt.Errorf("world %s random_tick_speed must be >= 0", w.ID)
		}
		if w.SnapshotEveryTicks < 0 {
			return fmt.Errorf("world %s snapshot_every_ticks must be >= 0", w.ID)
		}
	}
	if !seen[c.DefaultWorldID] {
		return fmt.Errorf("default_world_id %q not found in worlds", c.DefaultWorldID)
	}
	return nil
}

func (c Config) WorldSpecByID(id string) (WorldSpec, bool) {
	for _, w := range c.Worlds {
		if w.ID == id {
			return w, true
		}
	}
	return WorldSpec{}, false
}

// WorldConfig resolves the spec against the server seed and tuning.
func (s WorldSpec) WorldConfig(baseSeed int64, t tuning.Tuning) world.WorldConfig {
	cfg := world.ConfigFromTuning(s.ID, baseSeed+s.SeedOffset, t)
	if s.RandomTickSpeed > 0 {
		cfg.RandomTickSpeed = s.RandomTickSpeed
	}
	if s.SnapshotEveryTicks > 0 {
		cfg.SnapshotEveryTicks = s.SnapshotEveryTicks
	}
	cfg.InitialSeeds = s.Seeds
	cfg.InitialPlayers = s.Players
	return cfg
}

// Taint applies the per-world overrides to the shared rule tuning.
func (s WorldSpec) Taint(t tuning.TaintTuning) tuning.TaintTuning {
	if s.Pacifist != nil {
		t.Pacifist = *s.Pacifist
	}
	return t
}
