// Package grpcadapter is the gRPC protocol adapter. Unlike httpadapter,
// no compiled service descriptor is registered with grpc-go at startup
// (the mocked services come from whatever FileDescriptorSet the
// registry loaded, not from generated Go stubs), so this adapter drives
// every call through grpc.Server's UnknownServiceHandler and a raw
// passthrough codec instead of per-method handlers. This is the same
// technique grpc-go reverse proxies use to front services they don't
// have generated code for; nothing in the example pack wires grpc-go
// itself, so the shape here follows grpc-go's own codec/stream
// extension points rather than a specific teacher file.
package grpcadapter

import (
	"context"
	"io"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/google/uuid"

	"github.com/mockforge/core/internal/model"
	"github.com/mockforge/core/internal/pipeline"
)

// Adapter wraps a grpc.Server configured to route every call, for
// every service, through the orchestrator. Codecs are registered
// per-server via grpc.ForceServerCodec, so constructing an Adapter
// never mutates the process-global encoding registry.
type Adapter struct {
	Orchestrator *pipeline.Orchestrator
	Server       *grpc.Server
}

// New builds an Adapter. Extra opts are appended after the two options
// every Adapter requires (raw codec, unknown-service handler), so a
// caller can still add TLS credentials, keepalive policy, and the like.
func New(o *pipeline.Orchestrator, opts ...grpc.ServerOption) *Adapter {
	a := &Adapter{Orchestrator: o}
	base := []grpc.ServerOption{
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(a.handleStream),
	}
	a.Server = grpc.NewServer(append(base, opts...)...)
	return a
}

// handleStream services every inbound RPC regardless of which service
// or method it names. Streaming RPCs are read and replied to as a
// single request/response pair: spec.md's chaos and response-shaping
// stages operate on one ProtocolRequest/Response exchange, so only the
// first inbound message is read and a single reply is sent.
func (a *Adapter) handleStream(srv any, stream grpc.ServerStream) error {
	fullMethod, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "no method name on stream")
	}

	var in frame
	if err := stream.RecvMsg(&in); err != nil {
		if err == io.EOF {
			return nil
		}
		return status.Error(codes.InvalidArgument, "failed to read request: "+err.Error())
	}

	ctx := stream.Context()
	req := fromStream(ctx, fullMethod, in.payload)
	resp := a.Orchestrator.Handle(ctx, req)

	if code := effectiveCode(resp); code != codes.OK {
		return status.Error(code, problemDetail(resp, code))
	}
	for name, vals := range resp.Headers {
		for _, v := range vals {
			_ = stream.SetHeader(metadata.Pairs(name, v))
		}
	}
	return stream.SendMsg(frame{payload: resp.Body})
}

func fromStream(ctx context.Context, fullMethod string, body []byte) *model.ProtocolRequest {
	md, _ := metadata.FromIncomingContext(ctx)
	headers := map[string][]string(md)

	return &model.ProtocolRequest{
		ID:          requestID(headers),
		Protocol:    model.ProtocolGRPC,
		Method:      methodName(fullMethod),
		Path:        fullMethod,
		Headers:     headers,
		Body:        model.Body{Bytes: body, ContentType: "application/grpc+proto"},
		TraceID:     firstOf(headers, "x-trace-id"),
		SpanID:      firstOf(headers, "x-span-id"),
		WorkspaceID: workspaceID(headers),
	}
}

// methodName extracts the bare RPC name ("Method") from a full method
// string ("/pkg.Service/Method"), matching the registry's
// model.SpecOperation.Method convention for gRPC operations.
func methodName(fullMethod string) string {
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}

func requestID(headers map[string][]string) string {
	if id := firstOf(headers, "x-request-id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func workspaceID(headers map[string][]string) string {
	if ws := firstOf(headers, "x-mockforge-workspace"); ws != "" {
		return ws
	}
	return "default"
}

func firstOf(headers map[string][]string, key string) string {
	if vs, ok := headers[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// effectiveCode returns the gRPC status code a response should be sent
// with. The chaos fault stage precomputes GRPCCode directly; every
// other non-2xx outcome (route miss, validation failure, upstream
// error) only ever sets an HTTP-style Status, so this falls back to a
// status->code mapping with the same listed statuses as the fault
// stage's (internal/chaos's httpToGRPCCode); a status neither lists
// maps to codes.Internal here, where httpToGRPCCode gives codes.Unknown.
func effectiveCode(resp *pipeline.Response) codes.Code {
	if resp.GRPCCode != codes.OK {
		return resp.GRPCCode
	}
	if resp.Status >= 200 && resp.Status < 400 {
		return codes.OK
	}
	switch resp.Status {
	case 400:
		return codes.InvalidArgument
	case 401:
		return codes.Unauthenticated
	case 403:
		return codes.PermissionDenied
	case 404:
		return codes.NotFound
	case 408:
		return codes.DeadlineExceeded
	case 409:
		return codes.AlreadyExists
	case 429:
		return codes.ResourceExhausted
	case 501:
		return codes.Unimplemented
	case 503:
		return codes.Unavailable
	case 504:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// problemDetail picks the most specific human-readable message for a
// non-OK response: the validation problem's Detail (which names the
// offending pointer), then the raw body, then the gRPC code that is
// actually being sent (never the zero-value resp.GRPCCode, which reads
// as codes.OK for every non-chaos failure and would mislead the
// caller into thinking nothing failed).
func problemDetail(resp *pipeline.Response, code codes.Code) string {
	if resp.Problem != nil && resp.Problem.Detail != "" {
		return resp.Problem.Detail
	}
	if len(resp.Body) > 0 {
		return string(resp.Body)
	}
	return code.String()
}

// frame carries an already-encoded message body (the mocked response
// bytes, or the raw request bytes as received off the wire) through
// grpc-go without it attempting real protobuf marshaling, since the
// orchestrator works in terms of opaque model.Body, not compiled
// message types.
type frame struct {
	payload []byte
}

// rawCodec shadows grpc-go's built-in "proto" codec for the lifetime
// of this server so every message, for every unregistered service,
// passes through as raw bytes instead of failing to find a compiled
// Go type to unmarshal into.
type rawCodec struct{}

func (rawCodec) Name() string { return "proto" }

func (rawCodec) Marshal(v any) ([]byte, error) {
	f, ok := v.(frame)
	if !ok {
		return nil, status.Errorf(codes.Internal, "rawCodec: unexpected type %T", v)
	}
	return f.payload, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*frame)
	if !ok {
		return status.Errorf(codes.Internal, "rawCodec: unexpected type %T", v)
	}
	f.payload = append([]byte(nil), data...)
	return nil
}

var _ encoding.Codec = rawCodec{}
