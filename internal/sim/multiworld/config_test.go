package multiworld

import (
	"os"
	"path/filepath"
	"testing"

	"taintcraft.ai/internal/sim/tuning"
)

func TestLoad_WorldsYAML(t *testing.T) {
	cfg, err := Load("../../../configs/worlds.yaml")
	if err != nil {
		t.Fatalf("load worlds.yaml: %v", err)
	}
	if cfg.DefaultWorldID != "OVERWORLD" || len(cfg.Worlds) != 3 {
		t.Fatalf("config: %+v", cfg)
	}
	sanct, ok := cfg.WorldSpecByID("SANCTUARY")
	if !ok || sanct.Pacifist == nil || !*sanct.Pacifist {
		t.Fatalf("SANCTUARY should be pacifist: %+v", sanct)
	}
	wastes, _ := cfg.WorldSpecByID("WASTES")
	wc := wastes.WorldConfig(10, tuning.Defaults())
	if wc.Seed != 1010 || wc.RandomTickSpeed != 6 || len(wc.InitialSeeds) != 2 {
		t.Fatalf("world config: %+v", wc)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Worlds) != 1 || cfg.Worlds[0].ID != "OVERWORLD" {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]string{
		"dup":        "worlds:\n  - id: a\n  - id: A\n",
		"no default": "default_world_id: B\nworlds:\n  - id: A\n",
		"empty":      "worlds: []\n",
		"neg rts":    "worlds:\n  - id: A\n    random_tick_speed: -1\n",
		"blank id":   "worlds:\n  - id: \" \"\n",
		"bad yaml":   "worlds: [\n",
	}
	for name, doc := range cases {
		p := filepath.Join(t.TempDir(), "worlds.yaml")
		if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(p); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNormalizeDefaultsToFirstWorld(t *testing.T) {
	cfg := Config{Worlds: []WorldSpec{{ID: " mine "}, {ID: "b"}}}
	cfg.Normalize()
	if cfg.DefaultWorldID != "MINE" || cfg.Worlds[1].ID != "B" {
		t.Fatalf("normalize: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
