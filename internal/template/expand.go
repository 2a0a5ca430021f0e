package template

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mockforge/core/internal/model"
)

// mode controls which namespaces a given Expand call is allowed to
// resolve. static is used for the override engine's load-time
// pre-expansion (spec.md §4.2); full is used once per request after
// override application (spec.md §4.3).
type mode int

const (
	modeStatic mode = iota
	modeFull
)

// Context carries everything a token evaluation might need. Request,
// Params, and State are nil for static expansion.
type Context struct {
	Seed          int64
	OperationName string
	Request       *model.ProtocolRequest
	Params        model.PathParams
	State         *model.UnifiedState
}

// Engine expands template tokens. It holds no mutable state itself;
// every call derives its own deterministic stream from the seed it is
// given.
type Engine struct{}

// New returns a ready-to-use template engine.
func New() *Engine { return &Engine{} }

// ExpandStatic expands only the request-independent namespaces
// (faker.*, env.*, now, random.uuid) within raw, leaving every other
// token untouched for a later full Expand pass. It satisfies
// override.StaticExpander.
func (e *Engine) ExpandStatic(raw string) (string, error) {
	out, _ := e.expandString(modeStatic, Context{}, "", raw)
	return out, nil
}

// Expand walks value (typically a decoded JSON response body),
// expanding every string it finds. It recurses into maps and slices
// but never expands inside map keys, per spec.md §4.3.
func (e *Engine) Expand(ctx Context, value any) (any, []model.Diagnostic) {
	var diags []model.Diagnostic
	result := e.walk(ctx, "", value, &diags)
	return result, diags
}

func (e *Engine) walk(ctx Context, pointer string, value any, diags *[]model.Diagnostic) any {
	switch v := value.(type) {
	case string:
		out, d := e.expandString(modeFull, ctx, pointer, v)
		*diags = append(*diags, d...)
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = e.walk(ctx, pointer+"/"+escapePointerSegment(k), child, diags)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = e.walk(ctx, pointer+"/"+strconv.Itoa(i), child, diags)
		}
		return out
	default:
		return value
	}
}

// escapePointerSegment applies RFC 6901's "~1" / "~0" escaping so a
// key containing "/" does not corrupt the pointer used as the
// deterministic-seed key.
func escapePointerSegment(seg string) string {
	seg = strings.ReplaceAll(seg, "~", "~0")
	seg = strings.ReplaceAll(seg, "/", "~1")
	return seg
}

func (e *Engine) expandString(m mode, ctx Context, pointer, raw string) (string, []model.Diagnostic) {
	parts := scan(raw)
	if len(parts) == 1 && !parts[0].isToken {
		return raw, nil
	}

	var diags []model.Diagnostic
	var out strings.Builder
	for _, p := range parts {
		if !p.isToken {
			out.WriteString(p.literal)
			continue
		}
		resolved, ok, skip := e.resolveToken(m, ctx, pointer, p.raw)
		if skip {
			out.WriteString("{{" + p.raw + "}}")
			continue
		}
		if !ok {
			diags = append(diags, model.Diagnostic{
				Stage:    "template",
				Severity: model.SeverityWarn,
				Message:  fmt.Sprintf("unknown template token %q", p.raw),
				Pointer:  pointer,
			})
			continue
		}
		out.WriteString(resolved)
	}
	return out.String(), diags
}

// resolveToken evaluates one token body. skip is true when the token
// belongs to a namespace this mode does not handle (static mode
// leaving a request-dependent token for the later full pass); such
// tokens are emitted back verbatim rather than treated as unknown.
func (e *Engine) resolveToken(m mode, ctx Context, pointer, body string) (value string, ok bool, skip bool) {
	namespace, name, arg := parseToken(body)

	if m == modeStatic {
		switch namespace {
		case "faker", "env", "now":
			// fall through to full resolution below
		case "random":
			if name != "uuid" {
				return "", false, true
			}
		default:
			return "", false, true
		}
	}

	switch namespace {
	case "faker":
		_, faker := streamFor(ctx.Seed, ctx.OperationName, pointer+"#"+body)
		v, ok := evalFaker(faker, name)
		return v, ok, false
	case "random":
		rng, _ := streamFor(ctx.Seed, ctx.OperationName, pointer+"#"+body)
		v, ok := evalRandom(rng, name, arg)
		return v, ok, false
	case "env":
		v, ok := evalEnv(name)
		return v, ok, false
	case "now":
		return evalNow(name), true, false
	case "request":
		v, ok := evalRequest(ctx.Request, ctx.Params, name, arg)
		return v, ok, false
	case "state":
		v, ok := evalState(ctx.State, name, arg)
		return v, ok, false
	default:
		return "", false, false
	}
}
