package recorder

import (
	"context"

	"github.com/mockforge/core/internal/model"
	"github.com/mockforge/core/internal/proxy"
)

// Recorder implements the replay-lookup/record state machine from
// spec.md §4.6: Lookup -> Hit -> EmitReplay, or
// Lookup -> Miss -> Generate -> (optional) Record -> Emit.
type Recorder struct {
	store Store
	async *AsyncRecorder
	index *ReplayIndex // optional; nil disables cross-instance coordination
}

// New builds a Recorder over store, with async writes bounded to
// bufferCapacity. index may be nil.
func New(ctx context.Context, store Store, bufferCapacity int, index *ReplayIndex) *Recorder {
	return &Recorder{
		store: store,
		async: NewAsyncRecorder(ctx, store, bufferCapacity),
		index: index,
	}
}

// Key computes the stable request key for method/path/query. Callers
// hold onto the returned key across a Lookup miss so the later Record
// call persists under the exact same key: RecordedExchange's query is
// stored as a flattened one-value-per-key map, which is lossy for
// repeated query keys, so the key must never be recomputed from it.
func (r *Recorder) Key(method, path string, query map[string][]string) string {
	return proxy.RequestKey(method, path, query)
}

// Lookup returns the stored exchange for key, if any. When a shared
// replay index is configured, a negative index check short-circuits
// the (potentially remote) store lookup.
func (r *Recorder) Lookup(ctx context.Context, key string) (*model.RecordedExchange, bool, error) {
	if r.index != nil {
		has, err := r.index.Has(ctx, key)
		if err == nil && !has {
			return nil, false, nil
		}
	}
	return r.store.Get(key)
}

// Record schedules exchange for asynchronous persistence under key and
// updates the shared replay index, if configured.
func (r *Recorder) Record(ctx context.Context, key string, exchange *model.RecordedExchange) {
	r.async.Enqueue(key, exchange)
	if r.index != nil {
		_ = r.index.MarkRecorded(ctx, key)
	}
}

// DroppedWrites returns the number of recordings dropped due to
// buffer overflow.
func (r *Recorder) DroppedWrites() int64 {
	return r.async.Dropped.Load()
}
