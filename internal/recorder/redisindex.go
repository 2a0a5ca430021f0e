package recorder

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mockforge/core/internal/apierrors"
)

// ReplayIndex lets multiple mockforge instances behind a load balancer
// share knowledge of which request keys have a recording, without
// sharing the recordings' bodies themselves (those still live in each
// instance's local Store, or a Store backed by shared storage). A miss
// on the index always falls back to the local Store lookup, so this
// is an optimization/coordination layer, not a second source of truth.
type ReplayIndex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReplayIndex connects to a Redis instance at addr.
func NewReplayIndex(addr string, ttl time.Duration) *ReplayIndex {
	return &ReplayIndex{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// Has reports whether any instance has recorded key.
func (idx *ReplayIndex) Has(ctx context.Context, key string) (bool, error) {
	n, err := idx.client.Exists(ctx, indexKey(key)).Result()
	if err != nil {
		return false, apierrors.NewUpstreamError("replay index lookup", err)
	}
	return n > 0, nil
}

// MarkRecorded publishes that key now has a recording available.
func (idx *ReplayIndex) MarkRecorded(ctx context.Context, key string) error {
	if err := idx.client.Set(ctx, indexKey(key), 1, idx.ttl).Err(); err != nil {
		return apierrors.NewUpstreamError("replay index publish", err)
	}
	return nil
}

// Close releases the Redis client.
func (idx *ReplayIndex) Close() error { return idx.client.Close() }

func indexKey(key string) string { return "mockforge:replay:" + key }
