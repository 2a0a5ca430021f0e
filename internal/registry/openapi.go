package registry

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mockforge/core/internal/model"
)

// loadOpenAPI ingests an OpenAPI 3.0/3.1 JSON or YAML document
// (spec.md §4.1, §6). HTTP, WebSocket upgrade handshakes, and GraphQL
// (whose single POST /graphql endpoint is still usefully described by
// an OpenAPI document for the purposes of this registry) all resolve
// through this loader.
func loadOpenAPI(path string) ([]*model.SpecOperation, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}

	var ops []*model.SpecOperation
	for path, item := range doc.Paths.Map() {
		for method, operation := range item.Operations() {
			op := &model.SpecOperation{
				Protocol:          model.ProtocolHTTP,
				Name:              operationName(operation.OperationID, method, path),
				PathPattern:       openAPIPathToPattern(path),
				Method:            method,
				Tags:              toTagSet(operation.Tags),
				Metadata:          map[string]string{"summary": operation.Summary},
				ResponseSchemas:   map[string]any{},
				QueryParamSchemas: map[string]any{},
				PathParamSchemas:  map[string]any{},
			}
			if operation.RequestBody != nil {
				op.RequestSchema = firstJSONSchema(operation.RequestBody.Value.Content)
			}
			for _, paramRef := range operation.Parameters {
				if paramRef == nil || paramRef.Value == nil {
					continue
				}
				param := paramRef.Value
				schema := schemaToJSON(param.Schema, map[*openapi3.Schema]bool{})
				switch param.In {
				case openapi3.ParameterInQuery:
					op.QueryParamSchemas[param.Name] = schema
				case openapi3.ParameterInPath:
					op.PathParamSchemas[param.Name] = schema
				}
			}
			for status, resp := range operation.Responses.Map() {
				if resp.Value == nil {
					continue
				}
				op.ResponseSchemas[status] = firstJSONSchema(resp.Value.Content)
			}
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func operationName(operationID, method, path string) string {
	if operationID != "" {
		return operationID
	}
	return method + " " + path
}

// openAPIPathToPattern converts OpenAPI's {param} path templates into
// this registry's internal pattern syntax, which happens to be
// identical, so this is an identity conversion kept as a named step
// because the other loaders (fixture-based ones) do need translation.
func openAPIPathToPattern(path string) string {
	return path
}

func toTagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// firstJSONSchema extracts the schema from the first content entry
// whose media type looks like JSON, converting it into a plain
// map[string]any/[]any/primitive tree usable by the validation layer's
// gojsonschema-based validator without a kin-openapi dependency
// leaking into that package.
//
// Schemas are converted through a visited-by-pointer-identity walk: a
// $ref cycle resolves to a {"$ref": "<name>"} placeholder on the
// second visit instead of recursing forever, matching spec.md §9's
// "cycles are broken by reference-to-id rather than embedding" design
// note.
func firstJSONSchema(content openapi3.Content) any {
	for mediaType, media := range content {
		if media == nil || media.Schema == nil {
			continue
		}
		if !looksLikeJSON(mediaType) {
			continue
		}
		return schemaToJSON(media.Schema, map[*openapi3.Schema]bool{})
	}
	return nil
}

func looksLikeJSON(mediaType string) bool {
	return mediaType == "application/json" || mediaType == "application/problem+json" ||
		len(mediaType) > len("+json") && mediaType[len(mediaType)-len("+json"):] == "+json"
}

func schemaToJSON(ref *openapi3.SchemaRef, visited map[*openapi3.Schema]bool) any {
	if ref == nil || ref.Value == nil {
		return nil
	}
	s := ref.Value
	if visited[s] {
		name := ref.Ref
		if name == "" {
			name = "<cyclic>"
		}
		return map[string]any{"$ref": name}
	}
	visited[s] = true

	out := map[string]any{}
	if s.Type != nil && len(*s.Type) > 0 {
		out["type"] = (*s.Type)[0]
	}
	if s.Format != "" {
		out["format"] = s.Format
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if len(s.Properties) > 0 {
		props := map[string]any{}
		for name, p := range s.Properties {
			props[name] = schemaToJSON(p, visited)
		}
		out["properties"] = props
	}
	if s.Items != nil {
		out["items"] = schemaToJSON(s.Items, visited)
	}
	return out
}
