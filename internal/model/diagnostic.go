package model

// Severity classifies a Diagnostic for the request logger and for
// Warn-mode validation (spec.md §4.4, §4.7).
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Diagnostic is a single recoverable-condition record attached to a
// request's diagnostics collector: a bad override rule, a missing
// optional header, a Warn-mode schema violation. Diagnostics never
// stop the pipeline by themselves (spec.md §7).
type Diagnostic struct {
	Stage    string
	Severity Severity
	Message  string
	Pointer  string // JSON-pointer path, when applicable
	Rule     string // the override rule's source file/priority, when applicable
}
