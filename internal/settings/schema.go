// Package settings implements the typed, schema-validated persistent
// key/value store shared by the chat and player subsystems: live-update
// subscriptions, a migrations runner, and materialized "var" cells, all
// layered over an injected persistence Repo so the store itself stays
// storage-agnostic.
package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ValueType names the JSON shape a schema field's value must take.
type ValueType string

const (
	TypeString ValueType = "string"
	TypeInt    ValueType = "int"
	TypeFloat  ValueType = "float"
	TypeBool   ValueType = "bool"
	TypeJSON   ValueType = "json"
)

// FieldSchema describes one settings key's type and metadata.
type FieldSchema struct {
	Key      string    `yaml:"key" json:"key"`
	Type     ValueType `yaml:"type" json:"type"`
	Optional bool      `yaml:"optional" json:"optional"`
	Scope    string    `yaml:"scope" json:"scope"`
	Secret   bool      `yaml:"secret" json:"secret"`
	Feature  string    `yaml:"feature" json:"feature"`
	Doc      string    `yaml:"doc" json:"doc"`
}

// Schema is the full set of registered settings keys, loaded once at
// startup; a write to a key absent from Schema is rejected.
type Schema map[string]FieldSchema

// LoadSchema reads a YAML document at path listing the registered fields.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("settings: read schema: %w", err)
	}
	var fields []FieldSchema
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("settings: parse schema: %w", err)
	}
	schema := make(Schema, len(fields))
	for _, f := range fields {
		if f.Key == "" {
			return nil, fmt.Errorf("settings: schema entry missing key")
		}
		schema[f.Key] = f
	}
	return schema, nil
}
