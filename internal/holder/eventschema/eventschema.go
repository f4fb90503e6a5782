// Package eventschema validates provider event payloads before they enter a retrieval session.
package eventschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const wrapperSchemaURL = "https://healthwallet.local/schema/event-wrapper.schema.json"

//go:embed event-wrapper.schema.json
var wrapperSchema []byte

// Validator checks raw event wrapper payloads against the bundled schema.
type Validator struct {
	schema *jsonschema.Schema
}

// New compiles the bundled schema.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(wrapperSchemaURL, bytes.NewReader(wrapperSchema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(wrapperSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateWrapper validates one decoded envelope payload.
func (v *Validator) ValidateWrapper(payload []byte) error {
	var instance any
	if err := json.Unmarshal(payload, &instance); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := v.schema.Validate(instance); err != nil {
		return fmt.Errorf("event wrapper schema: %w", err)
	}
	return nil
}
