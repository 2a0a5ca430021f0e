package override

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mockforge/core/internal/model"
)

type staticExpander struct{}

func (staticExpander) ExpandStatic(raw string) (string, error) { return raw, nil }

const ruleFileYAML = `
rules:
  - target: "/widgets/1"
    priority: 10
    patch:
      - op: replace
        path: /name
        value: "patched-literal"
  - targets: ["op:get-widget"]
    priority: 5
    patch:
      - op: add
        path: /extra
        value: "from-op-target"
  - targets: ["tag:widgets"]
    method: GET
    priority: 1
    patch:
      - op: remove
        path: /internal
`

func writeRuleFile(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write rule file: %v", err)
	}
	return path
}

func TestEngineLoadAndResolveOrdersByPriority(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, ruleFileYAML)

	eng := New()
	diags := eng.Load(context.Background(), []string{filepath.Join(dir, "*.yaml")}, "", staticExpander{})
	for _, d := range diags {
		if d.Fatal {
			t.Fatalf("unexpected fatal diagnostic: %+v", d)
		}
	}

	op := &model.SpecOperation{Name: "get-widget", Tags: map[string]struct{}{"widgets": {}}}
	req := &model.ProtocolRequest{Method: "GET", Path: "/widgets/1"}

	matched := eng.Resolve(op, req)
	if len(matched) != 3 {
		t.Fatalf("expected all 3 rules to match, got %d", len(matched))
	}
	if matched[0].Priority != 10 || matched[1].Priority != 5 || matched[2].Priority != 1 {
		t.Fatalf("expected priority-descending order, got %v, %v, %v",
			matched[0].Priority, matched[1].Priority, matched[2].Priority)
	}
}

func TestMatchLiteralPathDoesNotMatchOtherPaths(t *testing.T) {
	rule := &model.OverrideRule{
		Targets: []model.Target{{Form: model.TargetLiteral, Literal: "/widgets/1"}},
	}
	hit := &model.ProtocolRequest{Path: "/widgets/1"}
	miss := &model.ProtocolRequest{Path: "/widgets/2"}

	if !Matches(rule, nil, hit) {
		t.Fatal("expected literal match")
	}
	if Matches(rule, nil, miss) {
		t.Fatal("expected no match for a different literal path")
	}
}

func TestMatchRespectsHeaderPredicate(t *testing.T) {
	rule := &model.OverrideRule{
		Targets: []model.Target{{Form: model.TargetLiteral, Literal: "/x"}},
		Headers: map[string]string{"X-Scenario": "outage"},
	}
	req := &model.ProtocolRequest{
		Path:    "/x",
		Headers: map[string][]string{"X-Scenario": {"normal"}},
	}
	if Matches(rule, nil, req) {
		t.Fatal("expected header predicate to reject mismatched value")
	}
	req.Headers["X-Scenario"] = []string{"outage"}
	if !Matches(rule, nil, req) {
		t.Fatal("expected header predicate to accept matching value")
	}
}

func TestApplyPatchesReplaceAddRemove(t *testing.T) {
	rules := []*model.OverrideRule{
		{
			SourceFile: "a.yaml",
			Patch: []model.PatchOp{
				{Op: model.PatchReplace, Path: "/name", Value: "overridden"},
				{Op: model.PatchAdd, Path: "/extra", Value: "hello"},
			},
		},
	}
	body := []byte(`{"name":"original","internal":"secret"}`)
	out, diags := Apply(rules, body)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal patched body: %v", err)
	}
	want := map[string]any{"name": "overridden", "internal": "secret", "extra": "hello"}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("expected %s=%v, got %v (full body %s)", k, v, got[k], out)
		}
	}
}

// TestApplyHigherPriorityWinsOnSharedPointer pins down spec.md §4.2's
// conflict policy: "If two rules modify the same pointer, the
// higher-priority rule wins (i.e. it applies last)." rules is passed
// in the priority-descending order Engine.Resolve/Select return
// (highest priority first); Apply must still make the highest-priority
// rule's value the one that survives.
func TestApplyHigherPriorityWinsOnSharedPointer(t *testing.T) {
	rules := []*model.OverrideRule{
		{
			SourceFile: "high.yaml",
			Priority:   10,
			Patch:      []model.PatchOp{{Op: model.PatchReplace, Path: "/name", Value: "high-priority"}},
		},
		{
			SourceFile: "low.yaml",
			Priority:   1,
			Patch:      []model.PatchOp{{Op: model.PatchReplace, Path: "/name", Value: "low-priority"}},
		},
	}
	body := []byte(`{"name":"original"}`)
	out, diags := Apply(rules, body)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal patched body: %v", err)
	}
	if got["name"] != "high-priority" {
		t.Fatalf("expected the higher-priority rule to win, got name=%v (full body %s)", got["name"], out)
	}
}

func TestApplyReplaceOnMissingKeyWarnsButContinues(t *testing.T) {
	rules := []*model.OverrideRule{
		{
			SourceFile: "a.yaml",
			Patch: []model.PatchOp{
				{Op: model.PatchReplace, Path: "/missing", Value: "x"},
				{Op: model.PatchAdd, Path: "/ok", Value: true},
			},
		},
	}
	body := []byte(`{}`)
	out, diags := Apply(rules, body)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one warning diagnostic, got %d: %+v", len(diags), diags)
	}
	if diags[0].Severity != model.SeverityWarn {
		t.Fatalf("expected warn severity, got %s", diags[0].Severity)
	}
	if string(out) != `{"ok":true}` {
		t.Fatalf("expected the second op to still apply, got %s", out)
	}
}

// TestApplyAddCreatesMissingIntermediateObjects pins down spec.md
// §4.2's distinction from the replace/remove case above: "add to a
// missing parent creates intermediate objects", it must not fail the
// rule the way replace/remove on a missing key does.
func TestApplyAddCreatesMissingIntermediateObjects(t *testing.T) {
	rules := []*model.OverrideRule{
		{
			SourceFile: "a.yaml",
			Patch: []model.PatchOp{
				{Op: model.PatchAdd, Path: "/meta/trace/id", Value: "abc123"},
			},
		},
	}
	body := []byte(`{}`)
	out, diags := Apply(rules, body)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal patched body: %v", err)
	}
	meta, ok := got["meta"].(map[string]any)
	if !ok {
		t.Fatalf("expected /meta to be created as an object, got %+v", got)
	}
	trace, ok := meta["trace"].(map[string]any)
	if !ok {
		t.Fatalf("expected /meta/trace to be created as an object, got %+v", meta)
	}
	if trace["id"] != "abc123" {
		t.Fatalf("expected /meta/trace/id=abc123, got %v (full body %s)", trace["id"], out)
	}
}

// TestApplyAddReusesExistingParent makes sure the missing-parent
// synthesis only fires when the parent is genuinely absent; an
// existing sibling key under the same parent must be left untouched.
func TestApplyAddReusesExistingParent(t *testing.T) {
	rules := []*model.OverrideRule{
		{
			SourceFile: "a.yaml",
			Patch: []model.PatchOp{
				{Op: model.PatchAdd, Path: "/meta/trace", Value: "xyz"},
			},
		},
	}
	body := []byte(`{"meta":{"other":"keep-me"}}`)
	out, diags := Apply(rules, body)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal patched body: %v", err)
	}
	meta := got["meta"].(map[string]any)
	if meta["other"] != "keep-me" {
		t.Fatalf("expected existing sibling key preserved, got %+v", meta)
	}
	if meta["trace"] != "xyz" {
		t.Fatalf("expected /meta/trace=xyz, got %+v", meta)
	}
}

func TestDiscoverFilesDeduplicatesAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, ruleFileYAML)

	files, err := DiscoverFiles([]string{filepath.Join(dir, "*.yaml"), filepath.Join(dir, "rules.yaml")}, "")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected deduplication to 1 file, got %v", files)
	}

	want := []string{filepath.Join(dir, "rules.yaml")}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Fatalf("unexpected file list (-want +got):\n%s", diff)
	}
}
