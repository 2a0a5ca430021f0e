package override

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/mockforge/core/internal/logging"
	"github.com/mockforge/core/internal/model"
)

// Engine owns the currently loaded, priority-sorted rule set and
// resolves it against requests. Like the registry, reload publishes a
// new slice through a single atomic store so in-flight requests never
// observe a half-loaded rule set.
type Engine struct {
	current atomic.Pointer[[]*model.OverrideRule]
}

// New returns an engine with no rules loaded.
func New() *Engine {
	e := &Engine{}
	empty := []*model.OverrideRule{}
	e.current.Store(&empty)
	return e
}

// Load discovers, parses, and compiles every rule file matched by
// patterns/env, replacing whatever was previously loaded.
func (e *Engine) Load(ctx context.Context, patterns []string, env string, expander StaticExpander) []LoadDiagnostic {
	files, err := DiscoverFiles(patterns, env)
	if err != nil {
		return []LoadDiagnostic{{Message: err.Error(), Fatal: true}}
	}

	var all []*model.OverrideRule
	var diags []LoadDiagnostic
	for _, file := range files {
		rules, fileDiags := ParseFile(file, expander)
		diags = append(diags, fileDiags...)
		all = append(all, rules...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Priority != all[j].Priority {
			return all[i].Priority > all[j].Priority
		}
		return all[i].SourceFile < all[j].SourceFile
	})

	logging.InfoContext(ctx, "override rules loaded", "count", len(all), "files", len(files))
	e.current.Store(&all)
	return diags
}

// Count returns the number of currently loaded rules, for the admin
// API's state summary (spec.md §6).
func (e *Engine) Count() int {
	return len(*e.current.Load())
}

// Resolve returns the ordered subset of currently loaded rules that
// match op/req, ready for Apply.
func (e *Engine) Resolve(op *model.SpecOperation, req *model.ProtocolRequest) []*model.OverrideRule {
	rules := *e.current.Load()
	return Select(rules, op, req)
}
