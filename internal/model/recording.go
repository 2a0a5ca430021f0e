package model

import "time"

// RecordedExchange is the content-addressed record/replay unit from
// spec.md §3. The on-disk and relational stores both serialize this
// same shape; only the storage medium differs.
type RecordedExchange struct {
	Version    int `json:"version"`
	RequestID  string            `json:"request_id"`
	Protocol   Protocol          `json:"protocol"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Query      map[string]string `json:"query"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"` // base64 when binary
	ClientIP   string            `json:"client_ip"`
	TraceID    string            `json:"trace_id,omitempty"`
	SpanID     string            `json:"span_id,omitempty"`
	Duration   time.Duration     `json:"duration"`

	ResponseStatus  int               `json:"response_status"`
	ResponseHeaders map[string]string `json:"response_headers"`
	ResponseBody    string            `json:"response_body"`

	RequestedAt time.Time `json:"requested_at"`
	RespondedAt time.Time `json:"responded_at"`
}

// CurrentRecordingVersion is written into every new RecordedExchange;
// the on-disk store ignores files whose version field does not match
// (spec.md §6).
const CurrentRecordingVersion = 1
