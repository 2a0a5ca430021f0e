// Package model defines the protocol-agnostic data model shared by
// every stage of the pipeline (spec.md §3): ProtocolRequest,
// SpecOperation, OverrideRule, ChaosConfig, UnifiedState and
// RecordedExchange.
package model

import "time"

// Protocol tags the wire protocol a request arrived on.
type Protocol string

// The protocols spec.md §3 names. Every protocol adapter normalizes
// into a ProtocolRequest carrying exactly one of these tags.
const (
	ProtocolHTTP    Protocol = "http"
	ProtocolGRPC    Protocol = "grpc"
	ProtocolWS      Protocol = "ws"
	ProtocolGraphQL Protocol = "graphql"
	ProtocolMQTT    Protocol = "mqtt"
	ProtocolAMQP    Protocol = "amqp"
	ProtocolKafka   Protocol = "kafka"
	ProtocolFTP     Protocol = "ftp"
	ProtocolSMTP    Protocol = "smtp"
	ProtocolTCP     Protocol = "tcp"
)

// Body is an opaque payload with a content-type hint.
type Body struct {
	Bytes       []byte
	ContentType string
}

// ProtocolRequest is the protocol-agnostic inbound envelope every
// pipeline stage operates on. It is immutable after construction; any
// data a stage derives from it (captured path parameters, diagnostics)
// lives in a side table keyed by ID, never on this struct.
type ProtocolRequest struct {
	ID         string
	Protocol   Protocol
	Method     string
	Path       string
	Headers    map[string][]string
	Query      map[string][]string
	Body       Body
	ClientAddr string
	TraceID    string
	SpanID     string
	ReceivedAt time.Time
	WorkspaceID string
}

// Header returns the first value for name. HTTP header lookups are
// case-insensitive; callers for other protocols are expected to have
// normalized case at adapter construction time if it matters to them.
func (r *ProtocolRequest) Header(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	vs, ok := r.Headers[canonicalHeader(name)]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// QueryParam returns the first value for name, and whether it was present.
func (r *ProtocolRequest) QueryParam(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	vs, ok := r.Query[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func canonicalHeader(name string) string {
	// http.CanonicalHeaderKey-equivalent without importing net/http here,
	// so this package stays usable by non-HTTP adapters without the
	// net/http dependency bleeding into their build graph.
	b := []byte(name)
	upper := true
	for i, c := range b {
		if c == '-' {
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		} else if !upper && c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
		upper = false
	}
	return string(b)
}
