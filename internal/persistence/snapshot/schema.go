package snapshot

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed scene.schema.json
var sceneSchemaJSON []byte

var (
	sceneSchemaOnce sync.Once
	sceneSchema     *jsonschema.Schema
	sceneSchemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	sceneSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("scene.schema.json", bytes.NewReader(sceneSchemaJSON)); err != nil {
			sceneSchemaErr = err
			return
		}
		sceneSchema, sceneSchemaErr = c.Compile("scene.schema.json")
	})
	return sceneSchema, sceneSchemaErr
}

// Validate checks a raw JSON scene body against the scene schema.
func Validate(body []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("scene schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	return nil
}
