package catalogs

import (
	"os"
	"path/filepath"
	"testing"

	"taintcraft.ai/internal/sim/voxel"
)

func TestDefaultCatalogResolvesClassesAndTags(t *testing.T) {
	c := Default().Materials
	if c.Palette[0] != "AIR" {
		t.Fatalf("AIR must be palette id 0, got %s", c.Palette[0])
	}
	log := c.Props(c.MustID("OAK_LOG"))
	if log.Class != voxel.ClassWood || !log.Tags.Has(voxel.TagLogs) {
		t.Fatalf("OAK_LOG resolved wrong: %+v", log)
	}
	water := c.Props(c.MustID("WATER"))
	if water.Class != voxel.ClassWater {
		t.Fatalf("WATER class: got %v", water.Class)
	}
	if bed := c.Props(c.MustID("BEDROCK")); bed.Hardness >= 0 {
		t.Fatalf("BEDROCK should be unbreakable, hardness=%v", bed.Hardness)
	}
	if got := c.Props(voxel.Material(60000)); got != c.Props(voxel.Air) {
		t.Fatalf("out of range ids should read as AIR")
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing air":   `[{"id":"STONE","class":"stone","hardness":1}]`,
		"unknown class": `[{"id":"AIR","class":"none","hardness":0},{"id":"X","class":"plasma","hardness":1}]`,
		"unknown tag":   `[{"id":"AIR","class":"none","hardness":0},{"id":"X","class":"stone","hardness":1,"tags":["shiny"]}]`,
		"lowercase id":  `[{"id":"air","class":"none","hardness":0}]`,
		"duplicate id":  `[{"id":"AIR","class":"none","hardness":0},{"id":"AIR","class":"none","hardness":0}]`,
	}
	for name, raw := range cases {
		if _, err := ParseMaterials([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadFromConfigDir(t *testing.T) {
	dir := t.TempDir()
	raw := `[{"id":"AIR","class":"none","hardness":0},{"id":"MOSS","class":"plant","hardness":0.1,"replaceable":true,"tags":["plant"]}]`
	if err := os.WriteFile(filepath.Join(dir, "materials.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	moss, ok := c.Materials.ID("MOSS")
	if !ok || moss != 1 {
		t.Fatalf("MOSS id: got %d ok=%v", moss, ok)
	}
	if !c.Materials.Props(moss).Replaceable {
		t.Fatalf("MOSS should be replaceable")
	}
	if c.Materials.PaletteDigest == "" || c.Materials.DefsDigest == "" {
		t.Fatalf("digests not set")
	}
}
