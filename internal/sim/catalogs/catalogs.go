package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"taintcraft.ai/internal/sim/voxel"
)

//go:embed materials.schema.json
var materialsSchema []byte

//go:embed default_materials.json
var defaultMaterials []byte

type Catalogs struct {
	Materials MaterialCatalog
}

type MaterialCatalog struct {
	Palette       []string
	Index         map[string]voxel.Material
	Defs          map[string]MaterialDef
	PaletteDigest string
	DefsDigest    string

	props []Props // by palette id
}

type MaterialDef struct {
	ID          string   `json:"id"`
	Class       string   `json:"class"`
	Hardness    float32  `json:"hardness"`
	Replaceable bool     `json:"replaceable,omitempty"`
	Occluding   bool     `json:"occluding,omitempty"`
	FullCube    bool     `json:"full_cube,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Props is the resolved, per-tick view of a material definition.
type Props struct {
	Class       voxel.Class
	Tags        voxel.Tags
	Hardness    float32
	Replaceable bool
	Occluding   bool
	FullCube    bool
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	raw, err := os.ReadFile(filepath.Join(configDir, "materials.json"))
	if err != nil {
		return nil, err
	}
	if err := parseMaterials(raw, &c.Materials); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the built-in material set.
func Default() *Catalogs {
	var c Catalogs
	if err := parseMaterials(defaultMaterials, &c.Materials); err != nil {
		panic(err)
	}
	return &c
}

func ParseMaterials(raw []byte) (*Catalogs, error) {
	var c Catalogs
	if err := parseMaterials(raw, &c.Materials); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("materials.schema.json", bytes.NewReader(materialsSchema)); err != nil {
		return nil, err
	}
	return c.Compile("materials.schema.json")
}

func parseMaterials(raw []byte, out *MaterialCatalog) error {
	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("materials schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("materials.json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("materials.json: %w", err)
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []MaterialDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("materials.json: %w", err)
	}
	out.Defs = map[string]MaterialDef{}
	for _, d := range defs {
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("materials.json: duplicate id %s", d.ID)
		}
		out.Defs[d.ID] = d
	}

	// AIR must exist and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("materials.json: missing AIR")
	}
	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		if id != "AIR" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	ids = append([]string{"AIR"}, ids...)
	if len(ids) > 0xffff {
		return fmt.Errorf("materials.json: too many materials (%d)", len(ids))
	}

	out.Palette = ids
	out.Index = make(map[string]voxel.Material, len(ids))
	out.props = make([]Props, len(ids))
	for i, id := range ids {
		out.Index[id] = voxel.Material(i)
		p, err := resolve(out.Defs[id])
		if err != nil {
			return fmt.Errorf("materials.json: %s: %w", id, err)
		}
		out.props[i] = p
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func resolve(d MaterialDef) (Props, error) {
	class, ok := voxel.ParseClass(d.Class)
	if !ok {
		return Props{}, fmt.Errorf("unknown class %q", d.Class)
	}
	var tags voxel.Tags
	for _, name := range d.Tags {
		t, ok := voxel.ParseTag(name)
		if !ok {
			return Props{}, fmt.Errorf("unknown tag %q", name)
		}
		tags = tags.With(t)
	}
	return Props{
		Class:       class,
		Tags:        tags,
		Hardness:    d.Hardness,
		Replaceable: d.Replaceable,
		Occluding:   d.Occluding,
		FullCube:    d.FullCube,
	}, nil
}

// Props returns the resolved properties of m. Unknown ids read as AIR.
func (c *MaterialCatalog) Props(m voxel.Material) Props {
	if int(m) >= len(c.props) {
		return c.props[voxel.Air]
	}
	return c.props[m]
}

func (c *MaterialCatalog) ID(name string) (voxel.Material, bool) {
	m, ok := c.Index[name]
	return m, ok
}

// MustID is for ids the simulation cannot run without.
func (c *MaterialCatalog) MustID(name string) voxel.Material {
	m, ok := c.Index[name]
	if !ok {
		panic(fmt.Sprintf("catalogs: missing material %s", name))
	}
	return m
}

// Name returns the catalog id of m, or "" when out of range.
func (c *MaterialCatalog) Name(m voxel.Material) string {
	if int(m) >= len(c.Palette) {
		return ""
	}
	return c.Palette[m]
}
