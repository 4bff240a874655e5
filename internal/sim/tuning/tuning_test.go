package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	p := writeTuning(t, "taint:\n  influence_radius: 12\n  pacifist: true\n")
	got, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Taint.InfluenceRadius != 12 || !got.Taint.Pacifist {
		t.Fatalf("overrides not applied: %+v", got.Taint)
	}
	if got.Taint.DeathChance != 0.1 || got.Taint.FluxCost != 0.01 {
		t.Fatalf("defaults lost: %+v", got.Taint)
	}
	if !got.Taint.GooOn() {
		t.Fatalf("goo should default to enabled")
	}
}

func TestLoadRejectsBadProbabilities(t *testing.T) {
	p := writeTuning(t, "taint:\n  death_chance: 1.5\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for death_chance > 1")
	}
	p = writeTuning(t, "taint:\n  rules: sideways\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for unknown rule table")
	}
}

func TestLoadDisablesGoo(t *testing.T) {
	p := writeTuning(t, "taint:\n  goo_enabled: false\n")
	got, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Taint.GooOn() {
		t.Fatalf("goo_enabled: false was ignored")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TAINT_PACIFIST", "true")
	t.Setenv("TAINT_INFLUENCE_RADIUS", "20")
	t.Setenv("TAINT_RULES", "Intended")
	got := Defaults()
	if err := got.ApplyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if !got.Taint.Pacifist || got.Taint.InfluenceRadius != 20 || got.Taint.Rules != "intended" {
		t.Fatalf("env not applied: %+v", got.Taint)
	}
}

func TestLoad_ShippedTuning(t *testing.T) {
	got, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load configs/tuning.yaml: %v", err)
	}
	if got.Taint.Rules != "fibre" || !got.Taint.GooOn() || got.World.FloorY != -64 {
		t.Fatalf("unexpected tuning: %+v", got)
	}
}
