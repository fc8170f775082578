package agent

import (
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	json "github.com/json-iterator/go"
)

// SchemaFor reflects the JSON Schema of T into the plain map form providers expect for
// tool parameters. Struct tags drive the result (`jsonschema:"..."`, `jsonschema_description`).
func SchemaFor[T any]() map[string]any {
	var zero T
	// Expansion looks the root up by type name, so only named structs are expanded. Anything
	// else, struct{} included, is reflected inline.
	rt := reflect.TypeOf(zero)
	expand := rt != nil && rt.Kind() == reflect.Struct && rt.Name() != ""
	reflector := &jsonschema.Reflector{ExpandedStruct: expand, DoNotReference: true}
	raw, err := json.Marshal(reflector.Reflect(zero))
	if err != nil {
		panic(fmt.Sprintf("agent: cannot marshal schema for %T: %v", zero, err))
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("agent: cannot decode schema for %T: %v", zero, err))
	}
	delete(out, "$schema")
	delete(out, "$id")
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out
}
