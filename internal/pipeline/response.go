package pipeline

import (
	"encoding/base64"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/mockforge/core/internal/model"
	"github.com/mockforge/core/internal/validation"
)

// Response is the protocol-agnostic outbound envelope every adapter
// serializes from. Status is the canonical HTTP-style status every
// protocol maps from (spec.md §7's "per-protocol status mapping");
// GRPCCode is only populated by the chaos fault stage, which already
// carries a precomputed gRPC mapping.
type Response struct {
	Status   int
	Headers  map[string][]string
	Body     []byte
	GRPCCode codes.Code
	Problem  *validation.Problem
	Dropped  bool // set by post-response shaping's packet-loss draw
}

func headerValue(h map[string][]string, name string) string {
	if h == nil {
		return ""
	}
	if vs, ok := h[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func responseFromExchange(ex *model.RecordedExchange) *Response {
	headers := make(map[string][]string, len(ex.ResponseHeaders))
	for k, v := range ex.ResponseHeaders {
		headers[k] = []string{v}
	}
	body := decodeRecordedBody(ex.ResponseBody)
	return &Response{Status: ex.ResponseStatus, Headers: headers, Body: body}
}

func decodeRecordedBody(s string) []byte {
	if s == "" {
		return nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return decoded
	}
	return []byte(s)
}

// flattenHeaders keeps the first value per header name, matching
// RecordedExchange's one-value-per-key shape (spec.md §3).
func flattenHeaders(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

func flattenQuery(q map[string][]string) map[string]string {
	out := make(map[string]string, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

func buildExchange(req *model.ProtocolRequest, resp *Response, requestedAt time.Time, duration time.Duration) *model.RecordedExchange {
	return &model.RecordedExchange{
		Version:         model.CurrentRecordingVersion,
		RequestID:       req.ID,
		Protocol:        req.Protocol,
		Method:          req.Method,
		Path:            req.Path,
		Query:           flattenQuery(req.Query),
		Headers:         flattenHeaders(req.Headers),
		Body:            base64.StdEncoding.EncodeToString(req.Body.Bytes),
		ClientIP:        req.ClientAddr,
		TraceID:         req.TraceID,
		SpanID:          req.SpanID,
		Duration:        duration,
		ResponseStatus:  resp.Status,
		ResponseHeaders: flattenHeaders(resp.Headers),
		ResponseBody:    base64.StdEncoding.EncodeToString(resp.Body),
		RequestedAt:     requestedAt,
		RespondedAt:     requestedAt.Add(duration),
	}
}
