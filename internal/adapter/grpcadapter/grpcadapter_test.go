package grpcadapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"

	"github.com/mockforge/core/internal/chaos"
	"github.com/mockforge/core/internal/model"
	"github.com/mockforge/core/internal/override"
	"github.com/mockforge/core/internal/pipeline"
	"github.com/mockforge/core/internal/registry"
	"github.com/mockforge/core/internal/template"
)

// fakeTransportStream satisfies grpc.ServerTransportStream, the only
// way grpc.MethodFromServerStream can recover a method name outside of
// a real network transport.
type fakeTransportStream struct{ method string }

func (f *fakeTransportStream) Method() string               { return f.method }
func (f *fakeTransportStream) SetHeader(metadata.MD) error  { return nil }
func (f *fakeTransportStream) SendHeader(metadata.MD) error { return nil }
func (f *fakeTransportStream) SetTrailer(metadata.MD) error { return nil }

func withFullMethod(ctx context.Context, method string) context.Context {
	return grpc.NewContextWithServerTransportStream(ctx, &fakeTransportStream{method: method})
}

// fakeServerStream is a minimal grpc.ServerStream stand-in that hands a
// fixed frame to RecvMsg and captures whatever handleStream sends back,
// without needing a real network listener.
type fakeServerStream struct {
	ctx  context.Context
	in   frame
	sent *frame
	hdr  metadata.MD
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }
func (s *fakeServerStream) SetHeader(md metadata.MD) error {
	s.hdr = metadata.Join(s.hdr, md)
	return nil
}
func (s *fakeServerStream) SendHeader(metadata.MD) error { return nil }
func (s *fakeServerStream) SetTrailer(metadata.MD)       {}
func (s *fakeServerStream) SendMsg(m any) error {
	f := m.(frame)
	s.sent = &f
	return nil
}
func (s *fakeServerStream) RecvMsg(m any) error {
	*(m.(*frame)) = s.in
	return nil
}

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	reg := registry.New()
	chaosEngine := chaos.NewEngine(model.ChaosConfig{})
	o := pipeline.New(reg, override.New(), template.New(), chaosEngine, pipeline.Config{})
	return New(o)
}

func TestHandleStreamUnknownMethodReturnsNotFound(t *testing.T) {
	a := newTestAdapter(t)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.MD{})
	stream := &fakeServerStream{ctx: withFullMethod(ctx, "/mock.Widgets/Get"), in: frame{payload: []byte(`{}`)}}

	err := a.handleStream(nil, stream)
	require.Error(t, err)
}

func TestRawCodecRoundTrips(t *testing.T) {
	c := rawCodec{}
	b, err := c.Marshal(frame{payload: []byte("hello")})
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), b)

	var out frame
	require.NoError(t, c.Unmarshal([]byte("world"), &out))
	require.Equal(t, []byte("world"), out.payload)
}

func TestMethodNameExtractsLastSegment(t *testing.T) {
	require.Equal(t, "Get", methodName("/mock.Widgets/Get"))
	require.Equal(t, "noop", methodName("noop"))
}

func TestProblemDetailFallsBackToCodeString(t *testing.T) {
	resp := &pipeline.Response{GRPCCode: codes.Unavailable}
	require.Equal(t, "Unavailable", problemDetail(resp, codes.Unavailable))
}

func TestProblemDetailNeverReportsOKForAValidationFailure(t *testing.T) {
	// A request-validation rejection only ever sets Status (400) plus a
	// Problem; GRPCCode stays at its codes.OK zero value. Before the
	// caller's effectiveCode is threaded through, the fallback used to
	// read resp.GRPCCode directly here and report the misleading
	// "OK" for exactly this shape of response.
	resp := &pipeline.Response{Status: 400}
	code := effectiveCode(resp)
	require.Equal(t, codes.InvalidArgument, code)
	require.Equal(t, "InvalidArgument", problemDetail(resp, code))
}
