package template

import (
	"testing"

	"github.com/mockforge/core/internal/model"
)

func TestScanHandlesLiteralEscape(t *testing.T) {
	parts := scan("price is {{{{not a token}}")
	if len(parts) != 1 || parts[0].isToken {
		t.Fatalf("expected a single literal part, got %+v", parts)
	}
	want := "price is {{not a token}}"
	if parts[0].literal != want {
		t.Fatalf("expected %q, got %q", want, parts[0].literal)
	}
}

func TestScanExtractsToken(t *testing.T) {
	parts := scan("hello {{faker.name}}!")
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d: %+v", len(parts), parts)
	}
	if parts[1].raw != "faker.name" {
		t.Fatalf("expected token body faker.name, got %q", parts[1].raw)
	}
}

func TestParseTokenSplitsNamespaceNameArg(t *testing.T) {
	ns, name, arg := parseToken("request.header.X-Foo")
	if ns != "request" || name != "header" || arg != "X-Foo" {
		t.Fatalf("got ns=%s name=%s arg=%s", ns, name, arg)
	}
}

func TestExpandIsDeterministicForSameSeed(t *testing.T) {
	e := New()
	ctx := Context{Seed: 42, OperationName: "get-widget"}

	v1, _ := e.Expand(ctx, map[string]any{"id": "{{faker.uuid}}"})
	v2, _ := e.Expand(ctx, map[string]any{"id": "{{faker.uuid}}"})

	m1 := v1.(map[string]any)
	m2 := v2.(map[string]any)
	if m1["id"] != m2["id"] {
		t.Fatalf("expected identical output for the same seed, got %v vs %v", m1["id"], m2["id"])
	}
}

func TestExpandDiffersAcrossResponsePointers(t *testing.T) {
	e := New()
	ctx := Context{Seed: 42, OperationName: "get-widget"}

	v, _ := e.Expand(ctx, map[string]any{
		"a": "{{random.uuid}}",
		"b": "{{random.uuid}}",
	})
	m := v.(map[string]any)
	if m["a"] == m["b"] {
		t.Fatalf("expected distinct streams for distinct pointers, got %v == %v", m["a"], m["b"])
	}
}

func TestExpandUnknownTokenEmitsDiagnosticAndEmptyString(t *testing.T) {
	e := New()
	_, diags := e.Expand(Context{}, "value is {{bogus.thing}}")
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != model.SeverityWarn {
		t.Fatalf("expected warn severity, got %s", diags[0].Severity)
	}
}

func TestExpandRequestNamespace(t *testing.T) {
	e := New()
	req := &model.ProtocolRequest{
		Headers: map[string][]string{"X-Scenario": {"outage"}},
		Query:   map[string][]string{"limit": {"10"}},
		Body:    model.Body{Bytes: []byte(`{"user":{"name":"ada"}}`)},
	}
	ctx := Context{Request: req, Params: model.PathParams{"id": "42"}}

	out, diags := e.expandString(modeFull, ctx, "", "{{request.header.X-Scenario}}/{{request.query.limit}}/{{request.path.id}}/{{request.body./user/name}}")
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}
	want := "outage/10/42/ada"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestExpandStateNamespace(t *testing.T) {
	e := New()
	state := &model.UnifiedState{
		Persona:      &model.Persona{Traits: map[string]string{"tier": "gold"}},
		ScenarioID:   "checkout-failure",
		RealityRatio: 0.25,
	}
	ctx := Context{State: state}

	out, _ := e.expandString(modeFull, ctx, "", "{{state.persona.tier}}/{{state.scenario}}/{{state.reality.ratio}}")
	want := "gold/checkout-failure/0.2500"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestExpandStaticLeavesRequestDependentTokensVerbatim(t *testing.T) {
	e := New()
	out, err := e.ExpandStatic("env {{env.HOME}} and {{request.header.X-Foo}}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "env "+mustEnvHome(t)+" and {{request.header.X-Foo}}" {
		t.Fatalf("unexpected static expansion result: %q", out)
	}
}

func mustEnvHome(t *testing.T) string {
	t.Helper()
	v, _ := evalEnv("HOME")
	return v
}

func TestExpandRandomChoicePicksFromOptions(t *testing.T) {
	e := New()
	out, diags := e.expandString(modeFull, Context{Seed: 1}, "", "{{random.choice.red,green,blue}}")
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}
	switch out {
	case "red", "green", "blue":
	default:
		t.Fatalf("expected one of red/green/blue, got %q", out)
	}
}
