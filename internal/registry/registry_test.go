package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mockforge/core/internal/model"
)

const minimalOpenAPI = `
openapi: "3.0.3"
info:
  title: test
  version: "1.0"
paths:
  /pets/{id}:
    get:
      operationId: get-pet
      tags: [pets]
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: object
                properties:
                  name:
                    type: string
`

const minimalFixture = `
operations:
  - name: temperature-reading
    pattern: sensors/+/temperature
    tags: [telemetry]
    qos: 1
    response_schemas:
      default:
        type: object
`

func writeTemp(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestRegistryLoadAndResolveOpenAPI(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "pets.yaml", minimalOpenAPI)

	reg := New()
	diags := reg.Load(context.Background(), []Source{{Protocol: model.ProtocolHTTP, Path: path}})
	for _, d := range diags {
		if d.Fatal {
			t.Fatalf("unexpected fatal diagnostic: %+v", d)
		}
	}

	op, params, ok := reg.Resolve(&model.ProtocolRequest{
		Protocol: model.ProtocolHTTP,
		Method:   "GET",
		Path:     "/pets/42",
	})
	if !ok {
		t.Fatal("expected resolve to find the pets operation")
	}
	if op.Name != "get-pet" {
		t.Fatalf("expected get-pet, got %s", op.Name)
	}
	if params["id"] != "42" {
		t.Fatalf("expected captured id=42, got %v", params)
	}

	byName, ok := reg.Operation(model.ProtocolHTTP, "get-pet")
	if !ok || byName != op {
		t.Fatalf("expected Operation lookup to return the same operation")
	}
	tagged := reg.OperationsByTag(model.ProtocolHTTP, "pets")
	if len(tagged) != 1 {
		t.Fatalf("expected 1 tagged operation, got %d", len(tagged))
	}
}

func TestRegistryLoadAndResolveMQTTFixture(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "sensors.yaml", minimalFixture)

	reg := New()
	diags := reg.Load(context.Background(), []Source{{Protocol: model.ProtocolMQTT, Path: path}})
	for _, d := range diags {
		if d.Fatal {
			t.Fatalf("unexpected fatal diagnostic: %+v", d)
		}
	}

	op, _, ok := reg.Resolve(&model.ProtocolRequest{
		Protocol: model.ProtocolMQTT,
		Path:     "sensors/kitchen/temperature",
	})
	if !ok || op.Name != "temperature-reading" {
		t.Fatalf("expected temperature-reading match, got %v ok=%v", op, ok)
	}
}

func TestRegistryLoadCollectsDiagnosticsForBadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "broken.yaml", "not: [valid, openapi")

	reg := New()
	diags := reg.Load(context.Background(), []Source{{Protocol: model.ProtocolHTTP, Path: path}})
	if len(diags) == 0 {
		t.Fatal("expected a diagnostic for the unparsable file")
	}
	if !diags[0].Fatal {
		t.Fatalf("expected a fatal diagnostic, got %+v", diags[0])
	}

	if _, _, ok := reg.Resolve(&model.ProtocolRequest{Protocol: model.ProtocolHTTP, Method: "GET", Path: "/anything"}); ok {
		t.Fatal("expected no resolution against an empty snapshot")
	}
}

func TestRegistryResolveUnknownProtocolMisses(t *testing.T) {
	reg := New()
	_, _, ok := reg.Resolve(&model.ProtocolRequest{Protocol: model.ProtocolGRPC, Method: "GET", Path: "/x"})
	if ok {
		t.Fatal("expected miss against an empty registry")
	}
}
