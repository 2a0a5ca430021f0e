package validation

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// FieldError is one schema violation, carrying a JSON-pointer so
// callers can report exactly where the request or response went
// wrong (spec.md §4.4).
type FieldError struct {
	Pointer string `json:"pointer"`
	Message string `json:"message"`
}

// ValidateJSON validates data (already-decoded JSON bytes) against
// schema, a plain map[string]any/[]any tree as produced by the
// registry's schema loaders. failFast stops at the first violation
// instead of collecting every one gojsonschema finds.
func ValidateJSON(schema any, data []byte, failFast bool) ([]FieldError, error) {
	if schema == nil {
		return nil, nil
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaJSON)
	docLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]FieldError, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		field := e.Field()
		// A missing required property is reported on its parent object;
		// point at the property itself.
		if prop, ok := e.Details()["property"].(string); ok && e.Type() == "required" {
			if field == "" || field == "(root)" {
				field = prop
			} else {
				field += "." + prop
			}
		}
		errs = append(errs, FieldError{
			Pointer: fieldToPointer(field),
			Message: e.Description(),
		})
		if failFast {
			break
		}
	}
	return errs, nil
}

// ValidateValue is like ValidateJSON but takes an already-decoded Go
// value instead of raw bytes, for validating a single query/path
// parameter against its schema.
func ValidateValue(schema any, value any) ([]FieldError, error) {
	if schema == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return ValidateJSON(schema, data, true)
}

// fieldToPointer converts gojsonschema's dotted field path ("(root)",
// "items.0.name") into an RFC 6901 JSON pointer.
func fieldToPointer(field string) string {
	if field == "" || field == "(root)" {
		return "/"
	}
	out := "/"
	for i, seg := range splitDotPath(field) {
		if i > 0 {
			out += "/"
		}
		out += seg
	}
	return out
}

func splitDotPath(field string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(field); i++ {
		if field[i] == '.' {
			segs = append(segs, field[start:i])
			start = i + 1
		}
	}
	segs = append(segs, field[start:])
	return segs
}
