package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/mockforge/core/internal/logging"
	"github.com/mockforge/core/internal/model"
)

// RequestLogEntry is the per-request record spec.md §4.8 requires for
// every completed request, short-circuited ones included.
type RequestLogEntry struct {
	RequestID       string
	Timestamp       time.Time
	Protocol        model.Protocol
	Method          string
	Path            string
	Status          int
	Duration        time.Duration
	OperationName   string // empty on a routing miss
	AppliedOverrides []string
	TriggeredFaults  []string
	ReplayHit        bool
}

// RequestLogger appends completed requests to the structured logger
// and feeds the request-count metric. It holds no buffer of its own:
// spec.md's request log is a stream, not a queryable store, and any
// persistence of it is the embedding caller's concern.
type RequestLogger struct {
	metrics *Metrics // optional; nil disables metric emission
}

// NewRequestLogger builds a RequestLogger. metrics may be nil.
func NewRequestLogger(metrics *Metrics) *RequestLogger {
	return &RequestLogger{metrics: metrics}
}

// Log records entry.
func (l *RequestLogger) Log(ctx context.Context, entry RequestLogEntry) {
	logging.InfoContext(ctx, "request completed",
		"request_id", entry.RequestID,
		"protocol", string(entry.Protocol),
		"method", entry.Method,
		"path", entry.Path,
		"status", entry.Status,
		"duration_ms", entry.Duration.Milliseconds(),
		"operation", entry.OperationName,
		"overrides", entry.AppliedOverrides,
		"faults", entry.TriggeredFaults,
		"replay_hit", entry.ReplayHit,
	)

	if l.metrics == nil {
		return
	}
	l.metrics.RequestsTotal.WithLabelValues(string(entry.Protocol), statusLabel(entry.Status)).Inc()
	l.metrics.StageDuration.WithLabelValues("total").Observe(entry.Duration.Seconds())
}

func statusLabel(status int) string {
	if status == 0 {
		return "unknown"
	}
	return strconv.Itoa(status)
}
