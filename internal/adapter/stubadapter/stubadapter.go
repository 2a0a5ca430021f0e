// Package stubadapter is the adapter.Protocol implementation backing
// every protocol with no dedicated wire-level library in this module
// (WS, GraphQL, AMQP, Kafka, FTP, SMTP, TCP): SPEC_FULL.md's protocol
// adapter supplement calls these out as getting "a documented
// no-op-validation stub adapter that exercises the same pipeline"
// rather than being left out of the core's reach (spec.md §9: a
// protocol with no analogue for a stage makes that stage a no-op, it
// does not exclude the protocol). Validation and template token rules
// for these protocols already degrade to a no-op inside their
// respective stages; this package's only job is queuing a
// ProtocolRequest in and a Response back out so a future real listener
// for one of these protocols has something to call.
package stubadapter

import (
	"context"

	"github.com/mockforge/core/internal/adapter"
	"github.com/mockforge/core/internal/model"
	"github.com/mockforge/core/internal/pipeline"
)

// Adapter is a channel-backed adapter.Protocol: Submit is the
// integration point a real listener for protocol would call once one
// exists; Accept is what adapter.Serve drives.
type Adapter struct {
	protocol model.Protocol
	queue    chan accepted
}

type accepted struct {
	req  *model.ProtocolRequest
	sink adapter.ResponseSink
}

// New returns a stub adapter that tags every request it accepts with
// protocol, overwriting whatever Submit's caller set.
func New(protocol model.Protocol) *Adapter {
	return &Adapter{protocol: protocol, queue: make(chan accepted)}
}

// Submit hands req and sink to the next Accept call, blocking until
// consumed or ctx is canceled.
func (a *Adapter) Submit(ctx context.Context, req *model.ProtocolRequest, sink adapter.ResponseSink) error {
	req.Protocol = a.protocol
	select {
	case a.queue <- accepted{req: req, sink: sink}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Accept implements adapter.Protocol.
func (a *Adapter) Accept(ctx context.Context) (*model.ProtocolRequest, adapter.ResponseSink, error) {
	select {
	case next := <-a.queue:
		return next.req, next.sink, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

var _ adapter.Protocol = (*Adapter)(nil)

// ChannelSink is a trivial adapter.ResponseSink that publishes every
// Response it receives onto a channel, useful for the real listeners
// this package's doc comment describes and for tests that exercise
// the pipeline without a real socket.
type ChannelSink struct {
	Responses chan *pipeline.Response
}

// NewChannelSink returns a ChannelSink with a buffered channel of size n.
func NewChannelSink(n int) *ChannelSink {
	return &ChannelSink{Responses: make(chan *pipeline.Response, n)}
}

// Send implements adapter.ResponseSink.
func (s *ChannelSink) Send(ctx context.Context, resp *pipeline.Response) error {
	select {
	case s.Responses <- resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
