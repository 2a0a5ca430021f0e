// Package registry implements the Spec Registry & Route Resolver
// (spec.md §4.1): it ingests OpenAPI, protobuf descriptor, and
// AsyncAPI-style fixture files into per-protocol SpecOperation
// indexes, and resolves an inbound ProtocolRequest to at most one
// operation.
//
// Reload follows the load-new-swap-pointer pattern from spec.md §9:
// a reload builds a complete new snapshot off the request path and
// publishes it with a single atomic pointer store, so in-flight
// requests keep observing the snapshot they started with.
package registry

import (
	"context"
	"sync/atomic"

	"github.com/mockforge/core/internal/logging"
	"github.com/mockforge/core/internal/model"
)

// LoadDiagnostic records one file-level load outcome: a parse failure
// or a duplicate-operation warning. Per spec.md §4.1, a failure on one
// file never prevents the rest from loading.
type LoadDiagnostic struct {
	File    string
	Message string
	Fatal   bool
}

// snapshot is the immutable value behind the registry's atomic pointer.
type snapshot struct {
	byProtocol map[model.Protocol]*protocolIndex
	topics     map[model.Protocol]*topicTrie
	loadErrors []LoadDiagnostic
}

func emptySnapshot() *snapshot {
	return &snapshot{
		byProtocol: make(map[model.Protocol]*protocolIndex),
		topics:     make(map[model.Protocol]*topicTrie),
	}
}

// Source describes one contract file to ingest, grouped by protocol
// per spec.md §4.1's loading rules.
type Source struct {
	Protocol model.Protocol
	Path     string
	// AllowDuplicates marks the file as tolerating a duplicate
	// (method, path, protocol) triple; the later registration wins.
	AllowDuplicates bool
}

// Registry owns the loaded SpecOperations for every protocol and
// resolves inbound requests against them.
type Registry struct {
	current atomic.Pointer[snapshot]
}

// New returns an empty registry; call Load or Reload to populate it.
func New() *Registry {
	r := &Registry{}
	r.current.Store(emptySnapshot())
	return r
}

// Load ingests the given sources, replacing whatever was previously
// loaded. Parse failures are collected as diagnostics rather than
// returned as a hard error, except when every source failed to load.
func (r *Registry) Load(ctx context.Context, sources []Source) []LoadDiagnostic {
	next := emptySnapshot()
	var diags []LoadDiagnostic

	for _, src := range sources {
		select {
		case <-ctx.Done():
			diags = append(diags, LoadDiagnostic{File: src.Path, Message: ctx.Err().Error(), Fatal: true})
			continue
		default:
		}

		ops, err := loadSource(src)
		if err != nil {
			logging.WarnContext(ctx, "spec load failed", "file", src.Path, "error", err)
			diags = append(diags, LoadDiagnostic{File: src.Path, Message: err.Error(), Fatal: true})
			continue
		}

		idx := next.byProtocol[src.Protocol]
		if idx == nil {
			idx = newProtocolIndex()
			next.byProtocol[src.Protocol] = idx
		}
		trie := next.topics[src.Protocol]
		if trie == nil && isTopicProtocol(src.Protocol) {
			trie = newTopicTrie()
			next.topics[src.Protocol] = trie
		}

		for _, op := range ops {
			if isTopicProtocol(src.Protocol) {
				trie.insert(op.PathPattern, op)
				idx.byName[op.Name] = op
				for tag := range op.Tags {
					idx.byTag[tag] = append(idx.byTag[tag], op)
				}
				continue
			}
			warning, err := idx.add(op, src.AllowDuplicates)
			if err != nil {
				diags = append(diags, LoadDiagnostic{File: src.Path, Message: err.Error(), Fatal: true})
				continue
			}
			if warning != "" {
				diags = append(diags, LoadDiagnostic{File: src.Path, Message: warning})
			}
		}
	}

	next.loadErrors = diags
	r.current.Store(next)
	return diags
}

// Reload re-ingests the same sources used by the last Load call. In
// this implementation the caller is expected to retain the Source list
// (typically the directory watcher in watch.go) and call Load again;
// Reload exists as the named operation spec.md §4.1/§9 calls for and
// is kept distinct from Load so callers can instrument reload-specific
// metrics and events (observability §4.8: "schema reload complete").
func (r *Registry) Reload(ctx context.Context, sources []Source) []LoadDiagnostic {
	return r.Load(ctx, sources)
}

// Operation looks up an operation by its unique, reload-stable name.
func (r *Registry) Operation(protocol model.Protocol, name string) (*model.SpecOperation, bool) {
	snap := r.current.Load()
	idx, ok := snap.byProtocol[protocol]
	if !ok {
		return nil, false
	}
	op, ok := idx.byName[name]
	return op, ok
}

// OperationsByTag returns every operation carrying the given tag.
func (r *Registry) OperationsByTag(protocol model.Protocol, tag string) []*model.SpecOperation {
	snap := r.current.Load()
	idx, ok := snap.byProtocol[protocol]
	if !ok {
		return nil
	}
	return idx.byTag[tag]
}

// Resolve implements spec.md §4.1's resolution algorithm: exact-match
// first, then the ordered templated list, then (for topic-based
// protocols) the compiled trie. A miss returns ok=false, which the
// pipeline may still carry forward into proxy fallback.
func (r *Registry) Resolve(req *model.ProtocolRequest) (*model.SpecOperation, model.PathParams, bool) {
	snap := r.current.Load()

	if isTopicProtocol(req.Protocol) {
		trie, ok := snap.topics[req.Protocol]
		if !ok {
			return nil, nil, false
		}
		op, ok := trie.match(req.Path)
		return op, nil, ok
	}

	idx, ok := snap.byProtocol[req.Protocol]
	if !ok {
		return nil, nil, false
	}
	if op, ok := idx.resolveExact(req.Method, req.Path); ok {
		return op, nil, true
	}
	return idx.resolveTemplated(req.Method, req.Path)
}

// All returns every loaded operation across every protocol, in no
// particular order. Used by the admin API's route-migration listing
// (spec.md §6), which needs to enumerate routes rather than resolve
// one at a time.
func (r *Registry) All() []*model.SpecOperation {
	snap := r.current.Load()
	ops := make([]*model.SpecOperation, 0)
	for _, idx := range snap.byProtocol {
		for _, op := range idx.byName {
			ops = append(ops, op)
		}
	}
	return ops
}

func isTopicProtocol(p model.Protocol) bool {
	switch p {
	case model.ProtocolMQTT, model.ProtocolAMQP, model.ProtocolKafka:
		return true
	default:
		return false
	}
}
