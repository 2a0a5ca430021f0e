package validation

import "strings"

// Problem is an RFC 7807-shaped error body for Enforce-mode rejections
// on HTTP; non-HTTP adapters translate Outcome into their own
// protocol's error representation instead of using this type.
type Problem struct {
	Type   string       `json:"type"`
	Title  string       `json:"title"`
	Status int          `json:"status"`
	Detail string       `json:"detail,omitempty"`
	Errors []FieldError `json:"errors,omitempty"`
}

// NewProblem builds a Problem from a blocked Outcome. Detail summarizes
// every field error ("pointer: message", semicolon-joined) so a caller
// that only reads Detail (e.g. a gRPC status message, which has no room
// for the structured Errors slice) still names the offending pointer
// spec.md §4.4/§7 calls for.
func NewProblem(status int, title string, outcome Outcome) Problem {
	return Problem{
		Type:   "https://mockforge.dev/problems/validation-failed",
		Title:  title,
		Status: status,
		Detail: detailFor(outcome.Errors),
		Errors: outcome.Errors,
	}
}

func detailFor(errs []FieldError) string {
	if len(errs) == 0 {
		return ""
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Pointer + ": " + e.Message
	}
	return strings.Join(parts, "; ")
}
