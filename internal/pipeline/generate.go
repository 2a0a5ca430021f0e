package pipeline

import (
	"encoding/json"
	"sort"

	"github.com/mockforge/core/internal/model"
)

// pickStatus chooses the status code response generation targets: the
// first 2xx-looking key in sorted order, falling back to the smallest
// key, falling back to "200" when the operation declares no response
// schemas at all. Map iteration order is not stable, so every caller
// must go through sorted keys to keep response generation
// deterministic across requests.
func pickStatus(op *model.SpecOperation) string {
	if op == nil || len(op.ResponseSchemas) == 0 {
		return "200"
	}
	keys := make([]string, 0, len(op.ResponseSchemas))
	for k := range op.ResponseSchemas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(k) > 0 && k[0] == '2' {
			return k
		}
	}
	return keys[0]
}

// generateDefaultBody synthesizes a minimal document satisfying
// schema's shape: every declared property present with a type-
// appropriate zero value, so the override/template stages downstream
// always have a stable pointer to patch or expand even before any
// user-authored fixture exists. A nil or malformed schema yields an
// empty JSON object, per spec.md §4.1's "optional response schema."
func generateDefaultBody(schema any) []byte {
	value := generateValue(schema)
	if value == nil {
		value = map[string]any{}
	}
	body, err := json.Marshal(value)
	if err != nil {
		return []byte("{}")
	}
	return body
}

// generateValue recurses on schema's own structure rather than
// tracking visited nodes: the registry's loader already breaks $ref
// cycles into {"$ref": name} placeholders at load time (spec.md §9),
// so a schema reaching this function is already acyclic.
func generateValue(schema any) any {
	m, ok := schema.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	if _, isRef := m["$ref"]; isRef {
		return map[string]any{}
	}

	if enum, ok := m["enum"].([]any); ok && len(enum) > 0 {
		return enum[0]
	}

	typ, _ := m["type"].(string)
	switch typ {
	case "object", "":
		props, _ := m["properties"].(map[string]any)
		out := make(map[string]any, len(props))
		for name, propSchema := range props {
			out[name] = generateValue(propSchema)
		}
		return out
	case "array":
		items := m["items"]
		if items == nil {
			return []any{}
		}
		return []any{generateValue(items)}
	case "string":
		return defaultStringForFormat(m["format"])
	case "integer":
		return 0
	case "number":
		return 0.0
	case "boolean":
		return false
	default:
		return nil
	}
}

func defaultStringForFormat(format any) string {
	f, _ := format.(string)
	switch f {
	case "uuid":
		return "00000000-0000-0000-0000-000000000000"
	case "date-time":
		return "1970-01-01T00:00:00Z"
	default:
		return ""
	}
}
