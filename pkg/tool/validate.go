package tool

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Validation is the outcome of parameter validation against a definition.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// SchemaMap renders the definition's parameters as a JSON Schema object.
// Only top-level presence and primitive type agreement are expressed;
// nested object and array contents stay unconstrained, and parameters not
// declared in the schema are allowed through.
func (d Definition) SchemaMap() map[string]interface{} {
	properties := make(map[string]interface{}, len(d.Parameters))
	for name, prop := range d.Parameters {
		p := map[string]interface{}{
			"type":        prop.Type,
			"description": prop.Description,
		}
		if len(prop.Enum) > 0 {
			enum := make([]interface{}, len(prop.Enum))
			for i, v := range prop.Enum {
				enum[i] = v
			}
			p["enum"] = enum
		}
		properties[name] = p
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(d.Required) > 0 {
		required := make([]interface{}, len(d.Required))
		for i, v := range d.Required {
			required[i] = v
		}
		schema["required"] = required
	}
	return schema
}

// CompileSchema compiles the definition's parameter schema.
func (d Definition) CompileSchema() (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(d.SchemaMap()))
	if err != nil {
		return nil, fmt.Errorf("compile schema for tool %s: %w", d.Name, err)
	}
	return schema, nil
}

// validateAgainst checks params against a compiled schema.
func validateAgainst(schema *gojsonschema.Schema, params map[string]interface{}) Validation {
	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return Validation{Valid: false, Errors: []string{err.Error()}}
	}
	if result.Valid() {
		return Validation{Valid: true}
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return Validation{Valid: false, Errors: errs}
}
