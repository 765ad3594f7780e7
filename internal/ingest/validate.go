package ingest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed reading.schema.json
var readingSchema []byte

const readingSchemaURL = "https://stageload.iot-sensordata/schemas/reading.json"

// ErrInvalidReading marks a message that fails schema or field validation
var ErrInvalidReading = errors.New("invalid sensor reading")

// Validator checks raw messages against the reading schema
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded reading schema
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(readingSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse reading schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(readingSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add reading schema: %w", err)
	}
	schema, err := c.Compile(readingSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reading schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Parse validates raw and decodes it. Every failure wraps ErrInvalidReading.
func (v *Validator) Parse(raw []byte) (*Reading, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReading, err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReading, err)
	}

	var reading Reading
	if err := json.Unmarshal(raw, &reading); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReading, err)
	}
	if _, err := reading.Time(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReading, err)
	}
	return &reading, nil
}
