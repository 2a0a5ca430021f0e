// Package adapter defines the protocol adapter capability set
// SPEC_FULL.md's "Protocol adapter capability interface" section
// commits to, concretizing spec.md §9's design note: "each protocol
// implements a small capability set: accept connection -> produce
// ProtocolRequest, consume terminal response -> serialize out."
//
// Per spec.md §1, the bytes-on-the-wire half of each protocol (HTTP/1.1
// framing, gRPC trailers, MQTT packet encoding, ...) is explicitly out
// of scope; this package only defines the shape every adapter converts
// into and out of. Concrete adapters live in sibling packages
// (httpadapter, grpcadapter, mqttadapter, stubadapter).
package adapter

import (
	"context"

	"github.com/mockforge/core/internal/model"
	"github.com/mockforge/core/internal/pipeline"
)

// ResponseSink consumes the orchestrator's terminal Response and
// serializes it back out over whatever transport Accept came in on.
// Implementations are protocol-specific (an http.ResponseWriter
// wrapper, a gRPC stream send, an MQTT publish-on-reply-topic) and are
// never shared across requests.
type ResponseSink interface {
	Send(ctx context.Context, resp *pipeline.Response) error
}

// Protocol is the capability every adapter implements: accept one
// inbound unit of work (a connection, an RPC, a publish) and hand back
// both the normalized request and the sink its response must be sent
// through. Accept blocks until a request arrives or ctx is canceled.
type Protocol interface {
	Accept(ctx context.Context) (*model.ProtocolRequest, ResponseSink, error)
}

// Serve drives one adapter's Accept loop against orchestrator until ctx
// is canceled, handling one request at a time in its own goroutine so
// a slow request (a proxied upstream call, an injected latency sleep)
// never blocks the next Accept. This is the generic "spawn one task
// per inbound request" loop spec.md §5 describes; httpadapter and
// grpcadapter don't use it because net/http and grpc-go already run
// their own accept loops and call into the orchestrator per-request
// through their own framework hooks instead.
func Serve(ctx context.Context, p Protocol, o *pipeline.Orchestrator) error {
	for {
		req, sink, err := p.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			resp := o.Handle(ctx, req)
			_ = sink.Send(ctx, resp)
		}()
	}
}
