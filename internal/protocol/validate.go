package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemasErr  error
	helloSchema *jsonschema.Schema
	cmdSchema   *jsonschema.Schema
)

func compileSchemas() {
	c := jsonschema.NewCompiler()
	compile := func(name string) *jsonschema.Schema {
		if schemasErr != nil {
			return nil
		}
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			schemasErr = err
			return nil
		}
		if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
			schemasErr = fmt.Errorf("%s: %w", name, err)
			return nil
		}
		s, err := c.Compile(name)
		if err != nil {
			schemasErr = fmt.Errorf("%s: %w", name, err)
			return nil
		}
		return s
	}
	helloSchema = compile("hello.schema.json")
	cmdSchema = compile("cmd.schema.json")
}

func validate(pick func() *jsonschema.Schema, raw []byte) error {
	schemasOnce.Do(compileSchemas)
	if schemasErr != nil {
		return schemasErr
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return pick().Validate(doc)
}

// DecodeHello validates raw against the HELLO schema and decodes it.
func DecodeHello(raw []byte) (HelloMsg, error) {
	var m HelloMsg
	if err := validate(func() *jsonschema.Schema { return helloSchema }, raw); err != nil {
		return m, err
	}
	err := json.Unmarshal(raw, &m)
	return m, err
}

// DecodeCmd validates raw against the CMD schema and decodes it.
func DecodeCmd(raw []byte) (CmdMsg, error) {
	var m CmdMsg
	if err := validate(func() *jsonschema.Schema { return cmdSchema }, raw); err != nil {
		return m, err
	}
	err := json.Unmarshal(raw, &m)
	return m, err
}
