package override

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/mockforge/core/internal/model"
)

// Apply applies every matched rule's patch operations to a copy of
// body. rules is expected in priority-descending order (the order
// Engine.Resolve/Select return); per spec.md §4.2 ("the higher-priority
// rule wins, i.e. it applies last"), Apply walks rules back-to-front so
// the highest-priority rule's patch is the last one to touch any given
// pointer. A single operation's failure (e.g. `replace` against a
// missing key) fails only that rule, per spec.md §4.2 ("fails the rule
// not the request, emits a warning"); the remaining rules still apply.
func Apply(rules []*model.OverrideRule, body []byte) ([]byte, []model.Diagnostic) {
	var diags []model.Diagnostic
	current := body
	if len(current) == 0 {
		current = []byte("{}")
	}

	for i := len(rules) - 1; i >= 0; i-- {
		patched, ruleDiags := applyRule(rules[i], current)
		diags = append(diags, ruleDiags...)
		if patched != nil {
			current = patched
		}
	}
	return current, diags
}

func applyRule(rule *model.OverrideRule, body []byte) ([]byte, []model.Diagnostic) {
	var diags []model.Diagnostic
	current := body

	for _, op := range rule.Patch {
		// spec.md §4.2: "add to a missing parent creates intermediate
		// objects"; only add gets this treatment, since replace/remove
		// against a missing key is supposed to fail the rule.
		if op.Op == model.PatchAdd {
			withParents, err := ensureParents(current, op.Path)
			if err != nil {
				diags = append(diags, warnDiag(rule, op, err))
				continue
			}
			current = withParents
		}

		opJSON, err := encodeOp(op)
		if err != nil {
			diags = append(diags, warnDiag(rule, op, err))
			continue
		}
		patch, err := jsonpatch.DecodePatch(opJSON)
		if err != nil {
			diags = append(diags, warnDiag(rule, op, err))
			continue
		}
		next, err := patch.Apply(current)
		if err != nil {
			diags = append(diags, warnDiag(rule, op, err))
			continue
		}
		current = next
	}
	return current, diags
}

// ensureParents walks path's intermediate segments (everything but the
// final token) and adds an empty object at any segment that doesn't
// exist yet, so a subsequent "add" at path succeeds instead of failing
// with a missing-parent error. Only objects are synthesized; a missing
// array index is left alone since spec.md §4.2 only calls out "creates
// intermediate objects".
func ensureParents(current []byte, path string) ([]byte, error) {
	tokens := decodePointer(path)
	for i := 1; i < len(tokens); i++ {
		prefix := tokens[:i]
		if pointerExists(current, prefix) {
			continue
		}
		doc := []map[string]any{{"op": "add", "path": encodePointer(prefix), "value": map[string]any{}}}
		opJSON, err := json.Marshal(doc)
		if err != nil {
			return current, err
		}
		patch, err := jsonpatch.DecodePatch(opJSON)
		if err != nil {
			return current, err
		}
		next, err := patch.Apply(current)
		if err != nil {
			return current, err
		}
		current = next
	}
	return current, nil
}

// decodePointer splits a JSON-pointer (RFC 6901) into its unescaped
// tokens. "" (the root pointer) decodes to no tokens.
func decodePointer(path string) []string {
	if path == "" || path == "/" {
		return nil
	}
	raw := strings.Split(strings.TrimPrefix(path, "/"), "/")
	tokens := make([]string, len(raw))
	for i, t := range raw {
		t = strings.ReplaceAll(t, "~1", "/")
		t = strings.ReplaceAll(t, "~0", "~")
		tokens[i] = t
	}
	return tokens
}

// encodePointer re-escapes tokens into a JSON-pointer path string.
func encodePointer(tokens []string) string {
	escaped := make([]string, len(tokens))
	for i, t := range tokens {
		t = strings.ReplaceAll(t, "~", "~0")
		t = strings.ReplaceAll(t, "/", "~1")
		escaped[i] = t
	}
	return "/" + strings.Join(escaped, "/")
}

// pointerExists reports whether tokens resolves to a present value in
// current. A missing object key or out-of-range array index is "does
// not exist"; anything else (wrong type along the path) is also
// treated as non-existent so the caller creates an object there,
// mirroring how jsonpatch's own "add" would fail on that path anyway.
func pointerExists(current []byte, tokens []string) bool {
	var doc any
	if err := json.Unmarshal(current, &doc); err != nil {
		return false
	}
	cur := doc
	for _, t := range tokens {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[t]
			if !ok {
				return false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(t)
			if err != nil || idx < 0 || idx >= len(v) {
				return false
			}
			cur = v[idx]
		default:
			return false
		}
	}
	return true
}

func encodeOp(op model.PatchOp) ([]byte, error) {
	doc := []map[string]any{{
		"op":   string(op.Op),
		"path": op.Path,
	}}
	if op.Op != model.PatchRemove {
		doc[0]["value"] = op.Value
	}
	return json.Marshal(doc)
}

func warnDiag(rule *model.OverrideRule, op model.PatchOp, err error) model.Diagnostic {
	return model.Diagnostic{
		Stage:    "override",
		Severity: model.SeverityWarn,
		Message:  fmt.Sprintf("override rule from %s: %s %s failed: %v", rule.SourceFile, op.Op, op.Path, err),
		Pointer:  op.Path,
	}
}
