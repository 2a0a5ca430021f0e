package override

import "github.com/mockforge/core/internal/model"

// Matches reports whether any of rule's targets hits the resolved
// operation and request, per spec.md §4.2's per-form matching table,
// and whether the optional method/header predicates also pass.
func Matches(rule *model.OverrideRule, op *model.SpecOperation, req *model.ProtocolRequest) bool {
	if !rule.MatchesMethod(req.Method) {
		return false
	}
	for name, want := range rule.Headers {
		got, ok := req.Header(name)
		if !ok || got != want {
			return false
		}
	}

	for _, t := range rule.Targets {
		if targetMatches(t, op, req) {
			return true
		}
	}
	return false
}

func targetMatches(t model.Target, op *model.SpecOperation, req *model.ProtocolRequest) bool {
	switch t.Form {
	case model.TargetLiteral:
		return t.Literal == req.Path
	case model.TargetPathPattern, model.TargetRegex:
		return t.Regex != nil && t.Regex.MatchString(req.Path)
	case model.TargetOperation:
		return op != nil && op.Name == t.Name
	case model.TargetTag:
		return op != nil && op.HasTag(t.Name)
	default:
		return false
	}
}

// Select returns the subset of rules matching op/req, ordered
// priority-descending then by source file for determinism (rules are
// already stored in that order by the engine, so Select preserves it).
func Select(rules []*model.OverrideRule, op *model.SpecOperation, req *model.ProtocolRequest) []*model.OverrideRule {
	var out []*model.OverrideRule
	for _, r := range rules {
		if Matches(r, op, req) {
			out = append(out, r)
		}
	}
	return out
}
