package validation

import (
	"github.com/mockforge/core/internal/model"
)

// Outcome is the result of validating one request or response against
// its operation's schemas.
type Outcome struct {
	Mode    Mode
	Errors  []FieldError
	Blocked bool // true when Mode is Enforce and Errors is non-empty
}

// ValidateRequest checks the request body and its query/path
// parameters against op's schemas, per cfg's mode and fail-fast
// policy. A Disabled mode or an admin-prefix skip returns an empty,
// unblocked Outcome without doing any work.
func ValidateRequest(cfg Config, op *model.SpecOperation, req *model.ProtocolRequest, params model.PathParams) Outcome {
	if cfg.RequestMode == Disabled || cfg.Skips(req.Path) {
		return Outcome{Mode: Disabled}
	}

	var errs []FieldError

	if op != nil && op.RequestSchema != nil && len(req.Body.Bytes) > 0 {
		bodyErrs, err := ValidateJSON(op.RequestSchema, req.Body.Bytes, cfg.FailFast)
		if err == nil {
			errs = append(errs, bodyErrs...)
		}
		if cfg.FailFast && len(errs) > 0 {
			return finish(cfg.RequestMode, errs)
		}
	}

	if op != nil {
		for name, schema := range op.QueryParamSchemas {
			v, ok := req.QueryParam(name)
			if !ok {
				continue
			}
			paramErrs, err := ValidateValue(schema, v)
			if err == nil {
				errs = append(errs, rekey(paramErrs, "/query/"+name)...)
			}
			if cfg.FailFast && len(errs) > 0 {
				return finish(cfg.RequestMode, errs)
			}
		}
		for name, schema := range op.PathParamSchemas {
			v, ok := params[name]
			if !ok {
				continue
			}
			paramErrs, err := ValidateValue(schema, v)
			if err == nil {
				errs = append(errs, rekey(paramErrs, "/path/"+name)...)
			}
			if cfg.FailFast && len(errs) > 0 {
				return finish(cfg.RequestMode, errs)
			}
		}
	}

	return finish(cfg.RequestMode, errs)
}

func rekey(errs []FieldError, prefix string) []FieldError {
	out := make([]FieldError, len(errs))
	for i, e := range errs {
		out[i] = FieldError{Pointer: prefix, Message: e.Message}
	}
	return out
}

func finish(mode Mode, errs []FieldError) Outcome {
	return Outcome{
		Mode:    mode,
		Errors:  errs,
		Blocked: mode == Enforce && len(errs) > 0,
	}
}
