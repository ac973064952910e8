package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

// SchemaURL identifies the embedded schema.
const SchemaURL = "onnxport.v1.schema.json"

//go:embed schema/onnxport.v1.schema.json
var embeddedSchema string

// LoadAndValidate loads and validates the configuration.
// An empty schemaPath selects the embedded schema.
func LoadAndValidate(path, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}

	schema, err := compileSchema(schemaPath)
	if err != nil {
		return nil, err
	}

	return Parse(data, schema)
}

// Parse decodes YAML data, validates it against schema and the semantic
// rules in Validate, and applies defaults.
func Parse(data []byte, schema *jsonschema.Schema) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: invalid YAML: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	config.ApplyDefaults()

	return &config, nil
}

func compileSchema(schemaPath string) (*jsonschema.Schema, error) {
	var (
		schema *jsonschema.Schema
		err    error
	)
	if schemaPath == "" {
		schema, err = jsonschema.CompileString(SchemaURL, embeddedSchema)
	} else {
		schema, err = jsonschema.Compile(schemaPath)
	}
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	return schema, nil
}
