package template

import "strings"

// tokenPart is either a literal run of text or a parsed token
// reference, produced by scanning a string left to right.
type tokenPart struct {
	literal string // set when isToken is false
	isToken bool
	raw     string // the full "namespace.name(.arg)?" body, token text only
}

// scan splits s into literal and token parts. "{{{{" is the escape for
// a literal "{{" (spec.md §4.3); everything else between a "{{" and
// the next "}}" is a token body.
func scan(s string) []tokenPart {
	var parts []tokenPart
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, tokenPart{literal: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(s) {
		if strings.HasPrefix(s[i:], "{{{{") {
			lit.WriteString("{{")
			i += 4
			continue
		}
		if strings.HasPrefix(s[i:], "{{") {
			end := strings.Index(s[i+2:], "}}")
			if end < 0 {
				// No closing delimiter: treat the rest as a literal.
				lit.WriteString(s[i:])
				i = len(s)
				break
			}
			flush()
			body := s[i+2 : i+2+end]
			parts = append(parts, tokenPart{isToken: true, raw: body})
			i += 2 + end + 2
			continue
		}
		lit.WriteByte(s[i])
		i++
	}
	flush()
	return parts
}

// parseToken splits a token body "namespace.name(.arg...)" into its
// three components. arg may itself contain dots (e.g. a JSON pointer
// or a header name), so only the first two dots are significant.
func parseToken(body string) (namespace, name, arg string) {
	parts := strings.SplitN(body, ".", 3)
	switch len(parts) {
	case 1:
		return parts[0], "", ""
	case 2:
		return parts[0], parts[1], ""
	default:
		return parts[0], parts[1], parts[2]
	}
}
