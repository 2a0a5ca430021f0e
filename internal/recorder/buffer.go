package recorder

import (
	"context"
	"sync/atomic"

	"github.com/mockforge/core/internal/logging"
	"github.com/mockforge/core/internal/model"
)

// pendingWrite pairs a request key with the exchange to persist for it.
type pendingWrite struct {
	key      string
	exchange *model.RecordedExchange
}

// AsyncRecorder writes recorded exchanges to a Store off the request
// path, through a bounded channel. On overflow the oldest pending
// write is dropped to make room for the newest, and Dropped is
// incremented, per spec.md §4.6 ("the oldest pending writes are
// dropped and a counter is incremented").
type AsyncRecorder struct {
	store   Store
	queue   chan pendingWrite
	Dropped atomic.Int64
}

// NewAsyncRecorder starts the background writer goroutine, bounded to
// capacity pending writes.
func NewAsyncRecorder(ctx context.Context, store Store, capacity int) *AsyncRecorder {
	r := &AsyncRecorder{
		store: store,
		queue: make(chan pendingWrite, capacity),
	}
	go r.run(ctx)
	return r
}

func (r *AsyncRecorder) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case w := <-r.queue:
			if err := r.store.Put(w.key, w.exchange); err != nil {
				logging.WarnContext(ctx, "recorded exchange write failed", "key", w.key, "error", err)
			}
		}
	}
}

// Enqueue schedules exchange for asynchronous persistence under key.
// It never blocks: a full buffer drops its oldest pending write first.
func (r *AsyncRecorder) Enqueue(key string, exchange *model.RecordedExchange) {
	w := pendingWrite{key: key, exchange: exchange}
	select {
	case r.queue <- w:
		return
	default:
	}

	select {
	case <-r.queue:
		r.Dropped.Add(1)
	default:
	}

	select {
	case r.queue <- w:
	default:
		// Another producer raced us and refilled the slot; drop this
		// write too rather than blocking the request path.
		r.Dropped.Add(1)
	}
}
