package helpers

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
)

var jsonSchemaReflector = jsonschema.Reflector{
	Anonymous:                 true,
	AllowAdditionalProperties: true,
	DoNotReference:            true,
	ExpandedStruct:            true,
}

// SchemaFor reflects a Go value into a plain JSON Schema map. The planner
// embeds these schemas in LLM prompts.
func SchemaFor(v any) (map[string]any, error) {
	schema := jsonSchemaReflector.ReflectFromType(reflect.TypeOf(v))

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SchemaJSON renders SchemaFor output as indented JSON text.
func SchemaJSON(v any) (string, error) {
	schema, err := SchemaFor(v)
	if err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
