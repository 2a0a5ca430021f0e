// Package recorder implements the storage half of the Proxy &
// Record/Replay Layer (spec.md §4.6): content-addressed stores for
// recorded exchanges, an optional shared replay-key index, and a
// bounded asynchronous write buffer.
package recorder

import "github.com/mockforge/core/internal/model"

// Store persists and retrieves RecordedExchange values by request key.
// The disk and relational implementations share this interface so the
// pipeline orchestrator never needs to know which backing store is
// configured.
type Store interface {
	Put(key string, exchange *model.RecordedExchange) error
	Get(key string) (*model.RecordedExchange, bool, error)
}
