package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/mockforge/core/internal/model"
)

// Tracer opens one span per request. Exporting spans to a collector is
// the embedding caller's concern (out of scope per spec.md §1); this
// module only needs the SDK's span-creation and context-propagation
// machinery, so the provider is built with no exporter registered.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a Tracer under the given service name.
func NewTracer(serviceName string) *Tracer {
	provider := sdktrace.NewTracerProvider()
	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
	}
}

// StartRequestSpan opens a span named "<protocol> <method> <path>" with
// the request's identifying attributes attached.
func (t *Tracer) StartRequestSpan(ctx context.Context, req *model.ProtocolRequest) (context.Context, trace.Span) {
	name := string(req.Protocol) + " " + req.Method + " " + req.Path
	return t.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("mockforge.protocol", string(req.Protocol)),
		attribute.String("mockforge.method", req.Method),
		attribute.String("mockforge.path", req.Path),
		attribute.String("mockforge.request_id", req.ID),
	))
}

// Shutdown releases the underlying provider's resources.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
