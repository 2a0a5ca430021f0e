package validation

import "github.com/mockforge/core/internal/model"

// ValidateResponse checks a generated response body against op's
// schema for status, after override application and template
// expansion (spec.md §4.4). It is a no-op unless cfg.ValidateResponses
// is set. rule, when non-empty, names the override rule's source file
// for the diagnostic, so an Enforce failure can point at what produced
// the bad body.
func ValidateResponse(cfg Config, op *model.SpecOperation, status string, body []byte, rule string) (Outcome, string) {
	if !cfg.ValidateResponses || cfg.ResponseMode == Disabled {
		return Outcome{Mode: Disabled}, rule
	}
	if op == nil {
		return Outcome{Mode: cfg.ResponseMode}, rule
	}
	schema, ok := op.ResponseSchemaFor(status)
	if !ok {
		return Outcome{Mode: cfg.ResponseMode}, rule
	}

	errs, err := ValidateJSON(schema, body, cfg.FailFast)
	if err != nil {
		return Outcome{Mode: cfg.ResponseMode}, rule
	}
	return finish(cfg.ResponseMode, errs), rule
}
