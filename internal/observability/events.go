package observability

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// EventKind enumerates the pipeline-level notifications spec.md §4.8
// names: schema reload complete, override reload complete, recording
// buffer overflow, and chaos rule activation/deactivation.
type EventKind string

const (
	EventSchemaReloadComplete    EventKind = "schema_reload_complete"
	EventOverrideReloadComplete  EventKind = "override_reload_complete"
	EventRecordingBufferOverflow EventKind = "recording_buffer_overflow"
	EventChaosRuleActivated      EventKind = "chaos_rule_activated"
	EventChaosRuleDeactivated    EventKind = "chaos_rule_deactivated"
)

// Event is a single notification delivered to Bus subscribers.
type Event struct {
	Kind      EventKind
	Workspace string
	Message   string
}

// Bus is a bounded multi-subscriber broadcast channel. Publish never
// blocks the pipeline on a slow subscriber: a full subscriber channel
// drops the event and increments a counter instead (spec.md §4.8:
// "slow subscribers lose events..., they do not block the pipeline").
// Delivery to each subscriber is attempted concurrently via an
// errgroup, so one subscriber's channel contention cannot delay
// delivery to the others.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	metrics     *Metrics // optional; nil disables drop counting
}

// NewBus builds an empty Bus. metrics may be nil.
func NewBus(metrics *Metrics) *Bus {
	return &Bus{subscribers: make(map[int]chan Event), metrics: metrics}
}

// Subscribe registers a new bounded subscriber channel of the given
// capacity and returns it along with an unsubscribe function.
func (b *Bus) Subscribe(capacity int) (<-chan Event, func()) {
	ch := make(chan Event, capacity)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
	return ch, unsubscribe
}

// Publish fans ev out to every current subscriber. Subscribers that
// cannot accept immediately are skipped for this event.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	for _, ch := range targets {
		ch := ch
		g.Go(func() error {
			select {
			case ch <- ev:
			default:
				if b.metrics != nil {
					b.metrics.EventsDropped.Inc()
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}
