package registry

import (
	"sort"
	"strings"

	"github.com/mockforge/core/internal/model"
)

// protocolIndex holds the two lookup structures spec.md §4.1 calls
// for: an exact-match table keyed by (method, literal path), and an
// ordered list of templated patterns sorted by specificity.
type protocolIndex struct {
	exact     map[exactKey]*model.SpecOperation
	templated []*templatedEntry
	byName    map[string]*model.SpecOperation
	byTag     map[string][]*model.SpecOperation
}

type exactKey struct {
	method string
	path   string
}

type templatedEntry struct {
	op       *model.SpecOperation
	segments []segment
}

type segment struct {
	literal  string
	isParam  bool
	isGlob   bool // trailing {*} style wildcard, lowest specificity
}

func newProtocolIndex() *protocolIndex {
	return &protocolIndex{
		exact:  make(map[exactKey]*model.SpecOperation),
		byName: make(map[string]*model.SpecOperation),
		byTag:  make(map[string][]*model.SpecOperation),
	}
}

// allowDuplicates controls whether a later registration of the same
// (method, path, protocol) triple wins with a warning, or fails the
// file at load time (spec.md §4.1 "Failure semantics").
func (idx *protocolIndex) add(op *model.SpecOperation, allowDuplicates bool) (warning string, err error) {
	if op.Name != "" {
		idx.byName[op.Name] = op
	}
	for tag := range op.Tags {
		idx.byTag[tag] = append(idx.byTag[tag], op)
	}

	if !isTemplatedPattern(op.PathPattern) {
		key := exactKey{method: op.Method, path: op.PathPattern}
		if _, exists := idx.exact[key]; exists {
			if !allowDuplicates {
				return "", duplicateOperationError(op)
			}
			warning = "duplicate operation " + op.Name + " for " + op.Method + " " + op.PathPattern + "; later registration wins"
		}
		idx.exact[key] = op
		return warning, nil
	}

	entry := &templatedEntry{op: op, segments: splitPattern(op.PathPattern)}
	idx.templated = append(idx.templated, entry)
	sortTemplated(idx.templated)
	return "", nil
}

// resolveExact looks up an exact (method, path) hit.
func (idx *protocolIndex) resolveExact(method, path string) (*model.SpecOperation, bool) {
	op, ok := idx.exact[exactKey{method: method, path: path}]
	return op, ok
}

// resolveTemplated scans the ordered templated list and returns the
// first match along with captured path parameters (spec.md §4.1:
// O(k) worst case in the number of templated patterns).
func (idx *protocolIndex) resolveTemplated(method, path string) (*model.SpecOperation, model.PathParams, bool) {
	reqSegs := strings.Split(strings.Trim(path, "/"), "/")
	for _, entry := range idx.templated {
		if entry.op.Method != "" && entry.op.Method != method {
			continue
		}
		if params, ok := matchSegments(entry.segments, reqSegs); ok {
			return entry.op, params, true
		}
	}
	return nil, nil, false
}

func matchSegments(pattern []segment, reqSegs []string) (model.PathParams, bool) {
	params := model.PathParams{}
	i := 0
	for _, seg := range pattern {
		if seg.isGlob {
			// A trailing wildcard consumes all remaining segments.
			return params, true
		}
		if i >= len(reqSegs) {
			return nil, false
		}
		if seg.isParam {
			params[seg.literal] = reqSegs[i]
		} else if seg.literal != reqSegs[i] {
			return nil, false
		}
		i++
	}
	return params, i == len(reqSegs)
}

func isTemplatedPattern(pattern string) bool {
	return strings.ContainsAny(pattern, "{*")
}

func splitPattern(pattern string) []segment {
	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		switch {
		case p == "*" || p == "**":
			segs = append(segs, segment{isGlob: true})
		case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}"):
			segs = append(segs, segment{literal: strings.Trim(p, "{}"), isParam: true})
		default:
			segs = append(segs, segment{literal: p})
		}
	}
	return segs
}

// specificity is the count of literal path segments (spec.md §4.1);
// ties are broken by absence of trailing wildcards, then registration
// order (stable sort preserves the latter).
func specificity(segs []segment) int {
	n := 0
	for _, s := range segs {
		if !s.isParam && !s.isGlob {
			n++
		}
	}
	return n
}

func hasTrailingGlob(segs []segment) bool {
	return len(segs) > 0 && segs[len(segs)-1].isGlob
}

func sortTemplated(entries []*templatedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		si, sj := specificity(entries[i].segments), specificity(entries[j].segments)
		if si != sj {
			return si > sj
		}
		gi, gj := hasTrailingGlob(entries[i].segments), hasTrailingGlob(entries[j].segments)
		if gi != gj {
			return !gi // non-glob sorts first
		}
		return false // preserve registration order
	})
}

func duplicateOperationError(op *model.SpecOperation) error {
	return &duplicateOperation{op: op}
}

type duplicateOperation struct {
	op *model.SpecOperation
}

func (e *duplicateOperation) Error() string {
	return "duplicate operation for " + e.op.Method + " " + e.op.PathPattern + " (protocol " + string(e.op.Protocol) + "); mark allow_duplicates to permit"
}
