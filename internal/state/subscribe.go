package state

import (
	"context"

	"github.com/mockforge/core/internal/logging"
)

// Subscribe drains events off the channel and applies them until ctx is
// canceled or the channel closes. The core never reads the channel from
// more than one goroutine; a single subscriber is the intended topology
// (spec.md §9: UnifiedState has "a many-reader/one-writer discipline...
// writers are the control-plane event consumer").
func (m *Manager) Subscribe(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.Apply(ev)
			logging.InfoContext(ctx, "state event applied",
				"workspace", ev.WorkspaceID, "kind", string(ev.Kind))
		}
	}
}
